// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package runner

import "errors"

// Errors
var (
	ErrBinaryNotFound = errors.New("binary not found in PATH")
)
