package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/MeKo-Tech/qrscan/internal/source"
	"github.com/cucumber/godog"
)

// RegisterPipelineSteps registers the steps that drive the orchestrator.
func (testCtx *TestContext) RegisterPipelineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan timeout is (\d+) milliseconds$`, testCtx.theScanTimeoutIs)
	sc.Step(`^decoding takes (\d+) milliseconds$`, testCtx.decodingTakes)

	sc.Step(`^I scan the image$`, testCtx.iScanTheImage)
	sc.Step(`^I start scanning the image$`, testCtx.iStartScanningTheImage)
	sc.Step(`^I cancel the scan (\d+) milliseconds into decoding$`, testCtx.iCancelIntoDecoding)
	sc.Step(`^the slow decode finishes afterwards$`, testCtx.theSlowDecodeFinishes)

	sc.Step(`^the outcome should be "([^"]*)"$`, testCtx.theOutcomeShouldBe)
	sc.Step(`^the payload should be "([^"]*)"$`, testCtx.thePayloadShouldBe)
	sc.Step(`^the code type should be "([^"]*)"$`, testCtx.theCodeTypeShouldBe)
	sc.Step(`^the code should be URL-eligible$`, testCtx.theCodeShouldBeURLEligible)
	sc.Step(`^no payload should be delivered$`, testCtx.noPayloadShouldBeDelivered)
	sc.Step(`^the failure should be a "([^"]*)" error$`, testCtx.theFailureShouldBeA)
	sc.Step(`^the notice "([^"]*)" should be shown once$`, testCtx.theNoticeShouldBeShownOnce)
	sc.Step(`^no notice should be shown$`, testCtx.noNoticeShouldBeShown)
	sc.Step(`^the history should contain (\d+) entr(?:y|ies)$`, testCtx.theHistoryShouldContain)
	sc.Step(`^no scan should be active$`, testCtx.noScanShouldBeActive)
}

func (testCtx *TestContext) theScanTimeoutIs(ms int) error {
	testCtx.Config.Timeout = time.Duration(ms) * time.Millisecond
	return nil
}

func (testCtx *TestContext) decodingTakes(ms int) error {
	testCtx.slow = newSlowDecoder(testCtx.Stages.Decoder, time.Duration(ms)*time.Millisecond)
	testCtx.Stages.Decoder = testCtx.slow
	return nil
}

func (testCtx *TestContext) source() source.Image {
	return source.FromBytes(testCtx.ImageName, testCtx.ImageData, codec.FormatUnknown)
}

func (testCtx *TestContext) iScanTheImage() error {
	out, err := testCtx.orchestrator().Run(context.Background(), testCtx.source())
	if err != nil {
		return fmt.Errorf("scan did not start: %w", err)
	}
	testCtx.Outcome = out
	return nil
}

func (testCtx *TestContext) iStartScanningTheImage() error {
	h, err := testCtx.orchestrator().Start(context.Background(), testCtx.source())
	if err != nil {
		return fmt.Errorf("scan did not start: %w", err)
	}
	testCtx.Handle = h
	return nil
}

func (testCtx *TestContext) iCancelIntoDecoding(ms int) error {
	if testCtx.slow == nil || testCtx.Handle == nil {
		return errors.New("cancelling needs a started scan with a slow decode")
	}
	select {
	case <-testCtx.slow.entered:
	case <-time.After(5 * time.Second):
		return errors.New("decoding never started")
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	if !testCtx.Handle.Cancel() {
		return errors.New("cancel lost the race to another terminal state")
	}
	testCtx.Outcome = testCtx.Handle.Wait()
	return nil
}

// theSlowDecodeFinishes waits for the abandoned decode and gives any late
// stage work time to surface.
func (testCtx *TestContext) theSlowDecodeFinishes() error {
	if testCtx.slow == nil {
		return errors.New("no slow decode configured")
	}
	select {
	case <-testCtx.slow.finished:
	case <-time.After(10 * time.Second):
		return errors.New("slow decode never finished")
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (testCtx *TestContext) theOutcomeShouldBe(want string) error {
	var state scan.State
	if err := state.UnmarshalText([]byte(want)); err != nil {
		return err
	}
	if testCtx.Outcome.Status != state {
		return fmt.Errorf("expected outcome %s, got %s (%s)", state, testCtx.Outcome.Status, testCtx.Outcome.ErrorReason)
	}
	return nil
}

func (testCtx *TestContext) thePayloadShouldBe(want string) error {
	if testCtx.Outcome.Payload != want {
		return fmt.Errorf("expected payload %q, got %q", want, testCtx.Outcome.Payload)
	}
	return nil
}

func (testCtx *TestContext) theCodeTypeShouldBe(want string) error {
	if testCtx.Outcome.CodeType != want {
		return fmt.Errorf("expected code type %q, got %q", want, testCtx.Outcome.CodeType)
	}
	return nil
}

func (testCtx *TestContext) theCodeShouldBeURLEligible() error {
	if !testCtx.Outcome.URLEligible() {
		return fmt.Errorf("expected a URL-eligible code, got content kind %q", testCtx.Outcome.ContentKind)
	}
	return nil
}

// noPayloadShouldBeDelivered checks the outcome and everything the sink saw.
func (testCtx *TestContext) noPayloadShouldBeDelivered() error {
	if testCtx.Outcome.Payload != "" {
		return fmt.Errorf("outcome carries payload %q", testCtx.Outcome.Payload)
	}
	_, outcomes := testCtx.notices.snapshot()
	for _, o := range outcomes {
		if o.Payload != "" || o.Status == scan.StateSucceeded {
			return fmt.Errorf("sink delivered payload %q with status %s", o.Payload, o.Status)
		}
	}
	if testCtx.Handle != nil {
		if s := testCtx.Handle.Task().State(); s != testCtx.Outcome.Status {
			return fmt.Errorf("task moved from %s to %s after concluding", testCtx.Outcome.Status, s)
		}
	}
	return testCtx.theHistoryShouldContain(0)
}

func (testCtx *TestContext) theFailureShouldBeA(kind string) error {
	if testCtx.Outcome.ErrorKind != kind {
		return fmt.Errorf("expected %q error, got %q: %s", kind, testCtx.Outcome.ErrorKind, testCtx.Outcome.ErrorReason)
	}
	if testCtx.Outcome.ErrorReason == "" {
		return errors.New("failure carries no reason")
	}
	return nil
}

func (testCtx *TestContext) theNoticeShouldBeShownOnce(title string) error {
	notices, _ := testCtx.notices.snapshot()
	if len(notices) != 1 {
		return fmt.Errorf("expected exactly one notice, got %d: %v", len(notices), notices)
	}
	if notices[0].Title != title {
		return fmt.Errorf("expected notice %q, got %q", title, notices[0].Title)
	}
	return nil
}

func (testCtx *TestContext) noNoticeShouldBeShown() error {
	if notices, _ := testCtx.notices.snapshot(); len(notices) != 0 {
		return fmt.Errorf("expected no notice, got %v", notices)
	}
	return nil
}

func (testCtx *TestContext) theHistoryShouldContain(n int) error {
	entries, err := testCtx.History.List(context.Background())
	if err != nil {
		return err
	}
	if len(entries) != n {
		return fmt.Errorf("expected %d history entries, got %d", n, len(entries))
	}
	return nil
}

func (testCtx *TestContext) noScanShouldBeActive() error {
	if t := testCtx.orchestrator().Active(); t != nil {
		return fmt.Errorf("task %s is still active in state %s", t.ID, t.State())
	}
	return nil
}
