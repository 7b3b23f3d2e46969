// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"io"

	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
)

// Reporter writes formatted results to a sink.
type Reporter struct {
	w         io.Writer
	formatter *Formatter
}

// NewReporter creates a reporter writing format to w.
func NewReporter(w io.Writer, format string) *Reporter {
	return &Reporter{w: w, formatter: NewFormatter(format)}
}

// Report writes result.
func (r *Reporter) Report(result *release.Result) error {
	out, err := r.formatter.Format(result)
	if err != nil {
		return err
	}
	_, err = io.WriteString(r.w, out)
	return err
}
