package utils

import (
	"fmt"
)

type NamedCloser struct {
	Name  string
	Close func() error
}

type NamedClosers []NamedCloser

type CloseOpt struct {
	ReverseOrder bool
	Output       func(...interface{})
	ErrorOutput  func(...interface{})
}

func (closers *NamedClosers) Add(name string, close func() error) {
	*closers = append(*closers, NamedCloser{Name: name, Close: close})
}

// Close runs every closer, failures do not stop the remaining ones. It
// returns the number of closers that failed.
func (closers NamedClosers) Close(opt *CloseOpt) int {
	var o CloseOpt
	if opt != nil {
		o = *opt
	}
	if o.Output == nil {
		o.Output = func(...interface{}) {}
	}
	if o.ErrorOutput == nil {
		o.ErrorOutput = func(...interface{}) {}
	}

	failed := 0
	for i := range closers {
		c := closers[i]
		if o.ReverseOrder {
			c = closers[len(closers)-1-i]
		}
		if err := c.Close(); err != nil {
			o.ErrorOutput(fmt.Sprintf("Fail to close %s error=%s", c.Name, err))
			failed++
			continue
		}
		o.Output(fmt.Sprintf("Closed %s", c.Name))
	}
	return failed
}
