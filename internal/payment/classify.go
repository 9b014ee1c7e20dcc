package payment

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

// Error categories surfaced to users after reclassification.
const (
	CategoryInsufficientBalance = "INSUFFICIENT_BALANCE"
	CategoryInvalidPhone        = "INVALID_PHONE"
	CategoryNetworkError        = "NETWORK_ERROR"
)

//go:embed classify.yaml
var defaultRules []byte

// Classifier maps provider errors onto actionable categories. It returns the
// original error when nothing matches.
type Classifier interface {
	Classify(err error) error
}

// Rule is one classification entry.
type Rule struct {
	Category string   `yaml:"category"`
	Message  string   `yaml:"message"`
	Codes    []string `yaml:"codes"`
	Any      []string `yaml:"any"`
	All      []string `yaml:"all"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// RuleClassifier matches provider error codes first and falls back to message
// substrings.
type RuleClassifier struct {
	rules []Rule
}

// NewRuleClassifier parses a YAML rule table.
func NewRuleClassifier(data []byte) (*RuleClassifier, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse classification rules: %w", err)
	}
	for i, r := range f.Rules {
		if r.Category == "" || r.Message == "" {
			return nil, fmt.Errorf("classification rule %d: category and message are required", i)
		}
	}
	return &RuleClassifier{rules: f.Rules}, nil
}

// DefaultClassifier returns the classifier built from the embedded rules.
func DefaultClassifier() *RuleClassifier {
	c, err := NewRuleClassifier(defaultRules)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify implements Classifier. Only *paypack.APIError values are considered.
func (c *RuleClassifier) Classify(err error) error {
	var apiErr *paypack.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	if r, ok := c.byCode(apiErr.Code); ok {
		return reclassified(apiErr, r)
	}
	if r, ok := c.byMessage(apiErr.Message); ok {
		return reclassified(apiErr, r)
	}
	return err
}

func (c *RuleClassifier) byCode(code string) (Rule, bool) {
	if code == "" {
		return Rule{}, false
	}
	for _, r := range c.rules {
		for _, rc := range r.Codes {
			if strings.EqualFold(rc, code) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

func (c *RuleClassifier) byMessage(msg string) (Rule, bool) {
	msg = strings.ToLower(msg)
	if msg == "" {
		return Rule{}, false
	}
	for _, r := range c.rules {
		if len(r.Any) > 0 && containsAny(msg, r.Any) {
			return r, true
		}
		if len(r.All) > 0 && containsAll(msg, r.All) {
			return r, true
		}
	}
	return Rule{}, false
}

func reclassified(orig *paypack.APIError, r Rule) *paypack.APIError {
	return &paypack.APIError{
		StatusCode: orig.StatusCode,
		Code:       r.Category,
		Message:    r.Message,
		Body:       orig.Body,
		Err:        orig,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, strings.ToLower(sub)) {
			return false
		}
	}
	return true
}
