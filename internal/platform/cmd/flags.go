package cmd

import "strings"

// StringList is a flag.Value collecting every occurrence of a repeated flag.
type StringList []string

func (l *StringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

// Set appends value unchanged.
func (l *StringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}
