package queue

import "errors"

// ErrorKind classifies why a job did not complete.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindInvalidJob       ErrorKind = "invalid_job"
	KindFileNotFound     ErrorKind = "file_not_found"
	KindUnsupportedMedia ErrorKind = "unsupported_media"
	KindInfrastructure   ErrorKind = "infrastructure"
)

// Result is what a Handler reports for one delivery.
type Result struct {
	Kind ErrorKind
	Err  error
}

// Done reports success.
func Done() Result { return Result{} }

// Fail reports a failure of the given kind.
func Fail(kind ErrorKind, err error) Result {
	return Result{Kind: kind, Err: err}.normalize()
}

// OK reports whether the job completed.
func (r Result) OK() bool {
	r = r.normalize()
	return r.Kind == KindNone
}

// Retryable reports whether running the job again may succeed. Only
// infrastructure failures qualify; the others depend on the job itself.
func (r Result) Retryable() bool {
	return r.normalize().Kind == KindInfrastructure
}

// Error returns the failure message, or "" on success.
func (r Result) Error() string {
	r = r.normalize()
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// normalize makes Kind and Err agree: an error without a kind counts as
// infrastructure, a kind without an error gets its name as message.
func (r Result) normalize() Result {
	switch {
	case r.Kind == KindNone && r.Err != nil:
		r.Kind = KindInfrastructure
	case r.Kind != KindNone && r.Err == nil:
		r.Err = errors.New(string(r.Kind))
	}
	return r
}
