package pipeline

import "fmt"

// IndexWriteError reports an upsert that failed after all retries.
type IndexWriteError struct {
	URL string
	Err error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write %s: %v", e.URL, e.Err)
}

func (e *IndexWriteError) Unwrap() error {
	return e.Err
}

// AdapterError reports a source adapter that could not produce listings.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
