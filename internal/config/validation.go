package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	MissingAPIKey        bool
	InvalidTickers       []string
	InvalidContractTypes []string
	InvalidDates         []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return e.MissingAPIKey || len(e.InvalidTickers) > 0 || len(e.InvalidContractTypes) > 0 || len(e.InvalidDates) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if e.MissingAPIKey {
		sb.WriteString("\napi_key is required (set POLYGON_API_KEY env var)\n")
	}

	if len(e.InvalidTickers) > 0 {
		sb.WriteString("\nInvalid tickers:\n")
		for _, t := range e.InvalidTickers {
			sb.WriteString(fmt.Sprintf("  - %s\n", t))
		}
		sb.WriteString(fmt.Sprintf("\nValid tickers: %s\n", validTickersList()))
	}

	if len(e.InvalidContractTypes) > 0 {
		sb.WriteString("\nInvalid contract types:\n")
		for _, c := range e.InvalidContractTypes {
			sb.WriteString(fmt.Sprintf("  - %s\n", c))
		}
		sb.WriteString("\nValid contract types: call, put\n")
	}

	if len(e.InvalidDates) > 0 {
		sb.WriteString("\nInvalid dates (use YYYY-MM-DD):\n")
		for _, d := range e.InvalidDates {
			sb.WriteString(fmt.Sprintf("  - %s\n", d))
		}
	}

	return sb.String()
}

// ValidateDownloadConfig validates everything a download needs before any request is made
func ValidateDownloadConfig(apiKey string, tickers, contractTypes, dates []string) error {
	errs := &ValidationErrors{MissingAPIKey: apiKey == ""}

	for _, ticker := range tickers {
		if !ValidTickers[ticker] {
			errs.InvalidTickers = append(errs.InvalidTickers, ticker)
		}
	}

	for _, ct := range contractTypes {
		if !ValidContractTypes[ct] {
			errs.InvalidContractTypes = append(errs.InvalidContractTypes, ct)
		}
	}

	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			errs.InvalidDates = append(errs.InvalidDates, d)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validTickersList() string {
	tickers := make([]string, 0, len(ValidTickers))
	for t := range ValidTickers {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return strings.Join(tickers, ", ")
}
