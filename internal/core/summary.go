package core

// MonthTotal is the net amount of one YYYY-MM bucket.
type MonthTotal struct {
	YM    string  `json:"ym"`
	Total float64 `json:"total"`
}

// CategoryTotal is the net amount of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Stats summarises the transactions matched by a Filter.
type Stats struct {
	Income     float64         `json:"income"`
	Expense    float64         `json:"expense"`
	Balance    float64         `json:"balance"`
	Series     []MonthTotal    `json:"series"`
	ByCategory []CategoryTotal `json:"byCategory"`
}
