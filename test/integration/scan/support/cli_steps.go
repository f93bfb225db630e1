package support

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/cmd/qrscan/cmd"
	"github.com/cucumber/godog"
	"github.com/spf13/viper"
)

// RegisterCLISteps registers the steps that run the qrscan command tree.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run qrscan with "([^"]*)"$`, testCtx.iRunQrscanWith)
	sc.Step(`^I run qrscan on the image with "([^"]*)"$`, testCtx.iRunQrscanOnTheImage)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
}

// runCLI executes a fresh command tree with history kept in the scenario
// directory, so scenarios never share state.
func (testCtx *TestContext) runCLI(args []string) error {
	for name, value := range map[string]string{
		"QRSCAN_HISTORY_BACKEND": "file",
		"QRSCAN_HISTORY_PATH":    filepath.Join(testCtx.TempDir, "history.json"),
		"QRSCAN_HISTORY_ENABLED": "true",
	} {
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}

	root := cmd.NewRootCommand(viper.New())
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	start := time.Now()
	testCtx.LastError = root.Execute()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

func (testCtx *TestContext) iRunQrscanWith(args string) error {
	return testCtx.runCLI(strings.Fields(args))
}

// iRunQrscanOnTheImage writes the prepared image and substitutes its path
// for the {image} placeholder.
func (testCtx *TestContext) iRunQrscanOnTheImage(args string) error {
	path, err := testCtx.writeImage()
	if err != nil {
		return err
	}
	fields := strings.Fields(args)
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "{image}", path)
	}
	return testCtx.runCLI(fields)
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command failed: %w\nstdout: %s\nstderr: %s", testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command succeeded unexpectedly\nstdout: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q\nstdout: %s\nstderr: %s", text, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains %q\nstdout: %s", text, testCtx.LastOutput)
	}
	return nil
}
