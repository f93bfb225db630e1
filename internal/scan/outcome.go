package scan

import (
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
)

// Outcome is the record handed to the result sink and to callers.
type Outcome struct {
	TaskID      string          `json:"task_id"`
	Source      string          `json:"source,omitempty"`
	Status      State           `json:"status"`
	Payload     string          `json:"payload,omitempty"`
	CodeType    string          `json:"code_type,omitempty"`
	ContentKind string          `json:"content_kind,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	ErrorReason string          `json:"error_reason,omitempty"`
	Notice      *Notice         `json:"notice,omitempty"`
	DurationMS  int64           `json:"duration_ms"`
	Stages      []StageTiming   `json:"stages"`
	Result      *barcode.Result `json:"-"`
	Err         error           `json:"-"`
}

// URLEligible reports whether the payload can be handed to a link opener.
func (o Outcome) URLEligible() bool {
	return o.Status == StateSucceeded && o.Result != nil && o.Result.Kind.Openable()
}

func (t *Task) buildLocked() Outcome {
	end := t.finished
	if end.IsZero() {
		end = time.Now()
	}
	out := Outcome{
		TaskID:     t.ID,
		Source:     t.Source.String(),
		Status:     t.State(),
		DurationMS: end.Sub(t.Created).Milliseconds(),
		Stages:     append([]StageTiming{}, t.stages...),
	}
	switch out.Status {
	case StateSucceeded:
		if t.result != nil {
			out.Result = t.result
			out.Payload = t.result.Text
			out.CodeType = t.result.Format.String()
			out.ContentKind = t.result.Kind.String()
		}
	case StateFailed:
		if t.err != nil {
			out.Err = t.err
			out.ErrorKind = t.err.Kind.String()
			out.ErrorReason = t.err.Reason()
		}
	}
	if n, ok := NoticeFor(out); ok {
		out.Notice = &n
	}
	return out
}
