// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/pkg/constants"
)

var outputFormats = []string{constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON}

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	for _, f := range outputFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("expected output format of %s, got %s", strings.Join(outputFormats, ", "), format)
}

// ValidateMode checks if the game mode is served by the catalog.
func ValidateMode(mode string) error {
	if mode != catalog.ModePVE && mode != catalog.ModePVP {
		return fmt.Errorf("expected game mode of %s or %s, got %s", catalog.ModePVE, catalog.ModePVP, mode)
	}
	return nil
}

// ValidateSortOrder checks if the item sort order is known.
func ValidateSortOrder(order string) error {
	switch order {
	case catalog.SortByName, catalog.SortByBaseValue, catalog.SortByRatio:
		return nil
	}
	return fmt.Errorf("expected sort order of %s, %s or %s, got %s",
		catalog.SortByName, catalog.SortByBaseValue, catalog.SortByRatio, order)
}
