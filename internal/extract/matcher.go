package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/tidwall/gjson"

	"dex/internal/document"
	"dex/internal/template"
)

// MatchOptions tunes rule evaluation per field.
type MatchOptions struct {
	// AllowArray permits path rules to resolve to a JSON array (the field's
	// catalog type is "array"). Without it an array result is no-match.
	AllowArray bool
}

// Match evaluates one extraction rule against one document.
//
// It is a pure function of its inputs. Returns the extracted value,
// ErrNoMatch when the rule cleanly found nothing, or a *RuleError when the
// rule itself is malformed or cannot apply to this document kind.
//
// Value types: selector and regex rules yield trimmed strings; path rules
// yield the native scalar (string, float64, bool), or []gjson.Result when
// AllowArray is set and the path resolves to an array.
func Match(doc *document.Document, rule template.ExtractionRule, opts MatchOptions) (any, error) {
	switch rule.Kind {
	case template.RuleSelector:
		return matchSelector(doc, rule)
	case template.RuleRegex:
		return matchRegex(doc, rule)
	case template.RulePath:
		return matchPath(doc, rule, opts)
	}
	return nil, &RuleError{Rule: rule, Err: fmt.Errorf("unknown rule kind %q", rule.Kind)}
}

func matchSelector(doc *document.Document, rule template.ExtractionRule) (any, error) {
	if !doc.HasTree() {
		return nil, &RuleError{Rule: rule, Err: fmt.Errorf("selector rule on %s document (no structural tree)", doc.Kind)}
	}
	sel, err := cascadia.Compile(rule.Selector)
	if err != nil {
		return nil, &RuleError{Rule: rule, Err: fmt.Errorf("invalid selector: %w", err)}
	}
	// First node in document order wins.
	nodes := doc.Tree.FindMatcher(sel)
	if nodes.Length() == 0 {
		return nil, ErrNoMatch
	}
	return strings.TrimSpace(nodes.First().Text()), nil
}

func matchRegex(doc *document.Document, rule template.ExtractionRule) (any, error) {
	re, err := regexp.Compile("(?im)" + rule.Pattern)
	if err != nil {
		return nil, &RuleError{Rule: rule, Err: fmt.Errorf("invalid regex: %w", err)}
	}
	if re.NumSubexp() < 1 {
		return nil, &RuleError{Rule: rule, Err: fmt.Errorf("regex pattern has no capture group")}
	}
	m := re.FindStringSubmatch(doc.Text)
	if len(m) < 2 {
		return nil, ErrNoMatch
	}
	return strings.TrimSpace(m[1]), nil
}

func matchPath(doc *document.Document, rule template.ExtractionRule, opts MatchOptions) (any, error) {
	if !doc.HasRoot() {
		return nil, &RuleError{Rule: rule, Err: fmt.Errorf("path rule on %s document (no structured root)", doc.Kind)}
	}
	res := doc.Root.Get(rule.Path)
	if !res.Exists() {
		return nil, ErrNoMatch
	}
	if res.IsArray() {
		if !opts.AllowArray {
			return nil, ErrNoMatch
		}
		return res.Array(), nil
	}
	return scalarValue(res), nil
}

// scalarValue converts a gjson scalar to its native Go form. Objects fall
// back to their raw JSON text so structured fields stay round-trippable.
func scalarValue(res gjson.Result) any {
	switch res.Type {
	case gjson.String:
		return strings.TrimSpace(res.String())
	case gjson.Number:
		return res.Float()
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Null:
		return nil
	}
	return res.Raw
}
