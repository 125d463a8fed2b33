package youtube

import "fmt"

// UpstreamError reports a failed metadata lookup: the identifier did not
// resolve or the remote source was unreachable.
type UpstreamError struct {
	Op  string
	ID  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AcquisitionError reports a failed audio download, including stream
// negotiation failures and mid-transfer errors. The partial destination file
// is invalid and must be removed by the caller's cleanup path.
type AcquisitionError struct {
	ID  string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.ID, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
