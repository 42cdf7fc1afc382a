package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old fingerprints.
const (
	DomainCatalog = "onboarding/catalog/v1"
	DomainSubject = "onboarding/subject/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical JSON form of v under domain.
func Fingerprint(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// TemplateFields returns the canonical map form of a template.
func TemplateFields(t Template) map[string]any {
	return map[string]any{
		"flag":             t.Flag,
		"short_code":       t.ShortCode,
		"task_type":        t.Kind,
		"name_prefix":      t.NamePrefix,
		"assigned_to":      t.AssignedTo,
		"description":      t.Description,
		"to_email":         t.ToEmail,
		"to_phone":         t.ToPhone,
		"email_subject":    t.EmailSubject,
		"message_template": t.MessageTemplate,
	}
}

// FlagFingerprint hashes the normalized flag set of a subject. Two subjects
// with the same fingerprint produce the same desired task set.
func FlagFingerprint(s Subject) string {
	flags := make(map[string]any, len(s.Flags))
	for k, v := range s.Flags {
		flags[k] = v
	}
	fp, err := Fingerprint(DomainSubject, map[string]any{
		"id":    s.ID,
		"flags": flags,
	})
	if err != nil {
		// strings and bools only; cannot fail
		panic(err)
	}
	return fp
}
