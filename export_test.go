package trialsink

var (
	FormatValue = formatValue
	Quote       = quote
)
