package validation

import (
	"regexp"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

var (
	casPattern = regexp.MustCompile(`^\d{1,7}-\d{2}-\d$`)
	// One element symbol with optional multiplicity, or a parenthesized group
	// with optional multiplicity.  Balance is checked separately.
	formulaToken = regexp.MustCompile(`^(?:[A-Z][a-z]?\d*|\(|\)\d*)+$`)
)

// ValidateCAS checks a CAS registry number against the d{1,7}-dd-d pattern.
func ValidateCAS(cas string) error {
	if cas == "" {
		return apperrors.New(apperrors.ErrCodeCASInvalid, "cas number is empty")
	}
	if !casPattern.MatchString(cas) {
		return apperrors.Newf(apperrors.ErrCodeCASInvalid, "cas number %q does not match the registry format", cas)
	}
	return nil
}

// ValidateFormula checks a chemical formula against the element-multiplicity
// grammar with balanced parentheses.
func ValidateFormula(formula string) error {
	if formula == "" {
		return apperrors.New(apperrors.ErrCodeFormulaInvalid, "formula is empty")
	}
	if !formulaToken.MatchString(formula) {
		return apperrors.Newf(apperrors.ErrCodeFormulaInvalid, "formula %q contains invalid tokens", formula)
	}
	depth := 0
	for _, r := range formula {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return apperrors.Newf(apperrors.ErrCodeFormulaInvalid, "formula %q has unbalanced parentheses", formula)
			}
		}
	}
	if depth != 0 {
		return apperrors.Newf(apperrors.ErrCodeFormulaInvalid, "formula %q has unbalanced parentheses", formula)
	}
	return nil
}
