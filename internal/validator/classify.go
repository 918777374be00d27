package validator

import (
	"regexp"
	"strings"
)

// Rule is one ordered classification rule for import error text. The
// first rule whose predicate matches decides the verdict.
type Rule struct {
	Name    string
	Match   func(errText string) bool
	Verdict Verdict
}

// Classifier interprets free-text import errors. Rule order matters and
// every input resolves to exactly one verdict: the final rule matches
// anything, so nothing is ever left unclassified and nothing silently
// downgrades to a weaker check.
type Classifier struct {
	rules []Rule
}

// runtimeConfigSignatures mark failures that only occur because the
// import ran outside the real deployment runtime: the module itself
// resolved, then tripped over missing region, credentials or network.
var runtimeConfigSignatures = []string{
	"noregionerror",
	"you must specify a region",
	"unable to locate credentials",
	"nocredentialserror",
	"endpointconnectionerror",
	"could not connect to the endpoint",
	"connection refused",
	"network is unreachable",
	"connection timed out",
	"temporary failure in name resolution",
}

var moduleNotFoundRe = regexp.MustCompile(`(?i)(?:ModuleNotFoundError|ImportError)[^']*'([^']+)'`)

// MissingModule extracts the module name from an import failure, or ""
// when the text is not a module-not-found error.
func MissingModule(errText string) string {
	m := moduleNotFoundRe.FindStringSubmatch(errText)
	if m == nil {
		return ""
	}
	return m[1]
}

// NewClassifier builds the ordered rule list. runtimeProvided is the
// platform allowlist: modules the deployment environment supplies and
// that are therefore deliberately never bundled.
func NewClassifier(runtimeProvided []string) *Classifier {
	allowed := append([]string(nil), runtimeProvided...)

	return &Classifier{rules: []Rule{
		{
			Name: "missing-runtime-configuration",
			Match: func(errText string) bool {
				lower := strings.ToLower(errText)
				for _, sig := range runtimeConfigSignatures {
					if strings.Contains(lower, sig) {
						return true
					}
				}
				return false
			},
			Verdict: VerdictPass,
		},
		{
			Name: "runtime-provided-module-missing",
			Match: func(errText string) bool {
				module := MissingModule(errText)
				if module == "" {
					return false
				}
				for _, a := range allowed {
					if module == a || strings.HasPrefix(module, a+".") {
						return true
					}
				}
				return false
			},
			Verdict: VerdictWarn,
		},
		{
			Name: "bundled-module-missing",
			Match: func(errText string) bool {
				return MissingModule(errText) != ""
			},
			Verdict: VerdictFail,
		},
		{
			// Anything else is an unexpected failure. Downgrading it to a
			// syntax-only check once let a package missing a hard runtime
			// dependency ship as healthy; it stays FAIL.
			Name:    "unexpected-import-failure",
			Match:   func(string) bool { return true },
			Verdict: VerdictFail,
		},
	}}
}

// Classify resolves error text to a verdict and the deciding rule name.
func (c *Classifier) Classify(errText string) (Verdict, string) {
	for _, rule := range c.rules {
		if rule.Match(errText) {
			return rule.Verdict, rule.Name
		}
	}
	// Unreachable: the last rule matches everything.
	return VerdictFail, "unexpected-import-failure"
}
