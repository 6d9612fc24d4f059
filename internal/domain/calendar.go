package domain

// Margin in pixels
type Margin struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// CalendarConfig is the layout of the year x month x hour small-multiples chart
type CalendarConfig struct {
	CellWidth    int    `json:"cellWidth" yaml:"cell_width"`
	CellHeight   int    `json:"cellHeight" yaml:"cell_height"`
	BarHeight    int    `json:"barHeight" yaml:"bar_height"`
	Margin       Margin `json:"margin" yaml:"margin"`
	LegendWidth  int    `json:"legendWidth" yaml:"legend_width"`
	LegendMargin struct {
		Top  int `json:"top" yaml:"top"`
		Left int `json:"left" yaml:"left"`
	} `json:"legendMargin" yaml:"legend_margin"`
}

// DefaultCalendarConfig returns the stock calendar layout
func DefaultCalendarConfig() CalendarConfig {
	c := CalendarConfig{
		CellWidth:   14,
		CellHeight:  14,
		BarHeight:   25,
		Margin:      Margin{Top: 50, Bottom: 2, Left: 50, Right: 5},
		LegendWidth: 60,
	}
	c.LegendMargin.Top = 60
	c.LegendMargin.Left = 8
	return c
}
