package config

// ValidTickers lists the underlyings the downloader knows how to name
var ValidTickers = map[string]bool{
	"I:SPX": true, "I:NDX": true, "I:RUT": true, "I:XSP": true, "I:VIX": true,
	"SPY": true, "QQQ": true, "IWM": true,
}

// ValidContractTypes lists the option rights that can be requested
var ValidContractTypes = map[string]bool{
	"call": true,
	"put":  true,
}

// DefaultTickers is used when neither config nor flags name an underlying
func DefaultTickers() []string {
	return []string{"I:NDX"}
}
