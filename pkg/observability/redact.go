// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Mask replaces secret values in redacted output.
const Mask = "[secure]"

// minSecretLength keeps short values such as "true" or "1" readable.
const minSecretLength = 5

var secretKey = regexp.MustCompile(`(?i)token|password|credential|secret|private`)

// Redactor masks the values of secret-looking environment variables in
// everything written through it. A trailing fragment that may start a secret
// is held until the next Write or Flush, so secrets split across writes are
// still masked.
type Redactor struct {
	w        io.Writer
	replacer *strings.Replacer
	secrets  []string

	mu      sync.Mutex
	pending string
}

// NewRedactor wraps w. Values of env keys matching token, password,
// credential, secret or private are masked.
func NewRedactor(w io.Writer, env map[string]string) *Redactor {
	secrets := secretValues(env)
	return &Redactor{w: w, replacer: secretReplacer(secrets), secrets: secrets}
}

// Write masks p and forwards it. The returned count is len(p) so callers see
// a full write even when the masked text has a different length.
func (r *Redactor) Write(p []byte) (int, error) {
	if r.replacer == nil {
		return r.w.Write(p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	text := r.pending + string(p)
	cut := r.safeCut(text)
	r.pending = text[cut:]
	if cut == 0 {
		return len(p), nil
	}
	if _, err := io.WriteString(r.w, r.replacer.Replace(text[:cut])); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes the held fragment.
func (r *Redactor) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == "" {
		return nil
	}
	text := r.pending
	r.pending = ""
	_, err := io.WriteString(r.w, r.replacer.Replace(text))
	return err
}

// safeCut returns how much of text can be masked and written now. The rest
// is a suffix that may be the beginning of a secret. A complete secret is
// never split by the cut.
func (r *Redactor) safeCut(text string) int {
	cut := len(text) - r.partialSuffix(text)
	for moved := true; moved; {
		moved = false
		for _, s := range r.secrets {
			for start := 0; ; {
				i := strings.Index(text[start:], s)
				if i < 0 {
					break
				}
				i += start
				if end := i + len(s); i < cut && end > cut {
					cut, moved = end, true
				}
				start = i + 1
			}
		}
	}
	return cut
}

// partialSuffix returns the length of the longest suffix of text that is a
// proper prefix of a secret.
func (r *Redactor) partialSuffix(text string) int {
	longest := 0
	for _, s := range r.secrets {
		for k := min(len(text), len(s)-1); k > longest; k-- {
			if strings.HasSuffix(text, s[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}

// Redact masks secrets in s.
func (r *Redactor) Redact(s string) string {
	if r.replacer == nil {
		return s
	}
	return r.replacer.Replace(s)
}

func secretValues(env map[string]string) []string {
	var secrets []string
	for k, v := range env {
		if secretKey.MatchString(k) && len(strings.TrimSpace(v)) >= minSecretLength {
			secrets = append(secrets, v)
		}
	}
	// Longest first so a secret containing another is masked whole.
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	return secrets
}

func secretReplacer(secrets []string) *strings.Replacer {
	if len(secrets) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(secrets)*2)
	for _, s := range secrets {
		pairs = append(pairs, s, Mask)
	}
	return strings.NewReplacer(pairs...)
}
