package survey

import (
	"strings"

	"github.com/abduss/stopsurvey/internal/catalog"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/multierr"
)

const genericContentType = "application/octet-stream"

// Validator applies a variant's completeness predicate against the catalog.
type Validator struct {
	catalog *catalog.Catalog
}

// NewValidator constructs a validator. The catalog is shared, never copied.
func NewValidator(c *catalog.Catalog) *Validator {
	return &Validator{catalog: c}
}

// Prepare returns a copy of the record with trimmed answers, empty values dropped and
// missing media content types sniffed from the bytes. Media bytes are not copied.
func Prepare(rec Record) Record {
	out := Record{
		Variant: strings.TrimSpace(rec.Variant),
		Answers: make(Answers, len(rec.Answers)),
		Media:   make([]MediaItem, len(rec.Media)),
	}
	for name, values := range rec.Answers {
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out.Answers.Add(name, v)
			}
		}
	}
	for i, item := range rec.Media {
		ct := strings.TrimSpace(strings.ToLower(item.ContentType))
		ct = stripParams(ct)
		if (ct == "" || ct == genericContentType) && len(item.Data) > 0 {
			ct = stripParams(mimetype.Detect(item.Data).String())
		}
		item.ContentType = ct
		out.Media[i] = item
	}
	return out
}

// Validate returns nil when the record is complete for the variant, otherwise every
// violated rule combined with multierr in field declaration order, media last.
func (v *Validator) Validate(variant Variant, rec Record) error {
	var errs error
	for _, f := range variant.Fields {
		errs = multierr.Append(errs, v.validateField(f, rec.Answers))
	}
	return multierr.Append(errs, validateMedia(variant.Media, rec.Media))
}

func (v *Validator) validateField(f Field, a Answers) error {
	values := a[f.Name]
	if len(values) == 0 {
		if f.Optional {
			return nil
		}
		return violation(f.Name, RuleRequired, "%s is required", f.Column)
	}

	switch f.Kind {
	case KindStaff:
		if v.catalog == nil {
			return violation(f.Name, RuleUnknownStaff, "staff %q is not registered", values[0])
		}
		if _, ok := v.catalog.Staff(values[0]); !ok {
			return violation(f.Name, RuleUnknownStaff, "staff %q is not registered", values[0])
		}
	case KindChoice:
		if len(values) > 1 {
			return violation(f.Name, RuleAllowedValue, "%s accepts a single value", f.Column)
		}
		if !contains(f.allowed(v.catalog, a), values[0]) {
			return violation(f.Name, RuleAllowedValue, "%q is not a valid %s", values[0], f.Column)
		}
	case KindMultiChoice:
		allowed := f.allowed(v.catalog, a)
		seen := make(map[string]bool, len(values))
		for _, val := range values {
			if !contains(allowed, val) {
				return violation(f.Name, RuleAllowedValue, "%q is not a valid %s", val, f.Column)
			}
			if seen[val] {
				return violation(f.Name, RuleDuplicate, "%q chosen twice", val)
			}
			seen[val] = true
		}
	case KindFreeText:
		if n := len(strings.Fields(strings.Join(values, " "))); n < f.MinWords {
			return violation(f.Name, RuleMinWords, "%s needs at least %d words, got %d", f.Column, f.MinWords, n)
		}
	}
	return nil
}

func validateMedia(rule MediaRule, items []MediaItem) error {
	n := len(items)
	switch {
	case rule.Min == rule.Max && n != rule.Min:
		return violation("media", RuleMediaCount, "exactly %d photos required, got %d", rule.Min, n)
	case n < rule.Min:
		return violation("media", RuleMediaCount, "at least %d photos required, got %d", rule.Min, n)
	case rule.Max > 0 && n > rule.Max:
		return violation("media", RuleMediaCount, "at most %d photos allowed, got %d", rule.Max, n)
	}

	var errs error
	for i, item := range items {
		if len(item.Data) == 0 {
			errs = multierr.Append(errs, violation("media", RuleMediaType, "item %d is empty", i+1))
			continue
		}
		if !item.IsImage() && !item.IsVideo() {
			errs = multierr.Append(errs, violation("media", RuleMediaType, "item %d has unsupported type %q", i+1, item.ContentType))
		}
	}
	return errs
}

func stripParams(ct string) string {
	if semi := strings.IndexByte(ct, ';'); semi >= 0 {
		return strings.TrimSpace(ct[:semi])
	}
	return ct
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
