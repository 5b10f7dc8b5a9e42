// Package receiptformat defines the types for the .receipt file format
package receiptformat

// Receipt represents the root structure of a .receipt file
type Receipt struct {
	Version        string          `json:"version"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedWith    string          `json:"created_with,omitempty"`
	PaperWidth     string          `json:"paper_width,omitempty"` // "58mm", "80mm", "112mm"
	CodePage       string          `json:"code_page,omitempty"`   // default for text commands
	Variables      []Variable      `json:"variables,omitempty"`
	VariableArrays []VariableArray `json:"variableArrays,omitempty"`
	Commands       []Command       `json:"commands"`
	CutPaper       *bool           `json:"cut_paper,omitempty"`
	FeedLines      *int            `json:"feed_lines,omitempty"`
}

// Trailer defaults applied when a receipt leaves them unset
const (
	DefaultCutPaper  = true
	DefaultFeedLines = 3
)

// ShouldCut reports whether a full cut follows the commands.
func (r *Receipt) ShouldCut() bool {
	if r.CutPaper == nil {
		return DefaultCutPaper
	}
	return *r.CutPaper
}

// TrailingFeed returns the number of lines fed before the cut.
func (r *Receipt) TrailingFeed() int {
	if r.FeedLines == nil {
		return DefaultFeedLines
	}
	return *r.FeedLines
}

// Variable represents a template variable
type Variable struct {
	Let          string      `json:"let"`
	ValueType    string      `json:"valueType"` // string, number, double, boolean
	DefaultValue interface{} `json:"defaultValue,omitempty"`
	Prefix       string      `json:"prefix,omitempty"`
	Suffix       string      `json:"suffix,omitempty"`
	Description  string      `json:"description,omitempty"`
}

// VariableArray represents a repeatable data structure
type VariableArray struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Schema      []VariableArrayField `json:"schema"`
}

// VariableArrayField defines a field in a variable array
type VariableArrayField struct {
	Field        string      `json:"field"`
	ValueType    string      `json:"valueType"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
	Prefix       string      `json:"prefix,omitempty"`
	Suffix       string      `json:"suffix,omitempty"`
	Description  string      `json:"description,omitempty"`
}

// Command types understood by the compiler. Other types validate and are
// skipped.
const (
	TypeText    = "text"
	TypeImage   = "image"
	TypeBarcode = "barcode"
	TypeQRCode  = "qrcode"
	TypeRaw     = "command"
	TypeFeed    = "feed"
	TypeCut     = "cut"
	TypeDrawer  = "drawer"
	TypeItem    = "item"
	TypeDivider = "divider"
)

// Command represents any receipt command
type Command struct {
	Type         string `json:"type"`
	ArrayBinding string `json:"arrayBinding,omitempty"`

	// Text command, also the payload of barcode and qrcode
	Value        string `json:"value,omitempty"`
	DynamicValue string `json:"dynamicValue,omitempty"`
	ArrayField   string `json:"arrayField,omitempty"`
	Weight       string `json:"weight,omitempty"`
	Italic       bool   `json:"italic,omitempty"`
	Underline    bool   `json:"underline,omitempty"`
	Inverted     bool   `json:"inverted,omitempty"`
	Size         int    `json:"size,omitempty"`
	Align        string `json:"align,omitempty"`
	CodePage     string `json:"code_page,omitempty"`

	// Image command
	Path      string `json:"path,omitempty"`
	Base64    string `json:"base64,omitempty"`
	Threshold *int   `json:"threshold,omitempty"`
	Dither    string `json:"dither,omitempty"` // floyd-steinberg, bayer, atkinson
	Dithering *bool  `json:"dithering,omitempty"`

	// Feed command
	Lines int `json:"lines,omitempty"`

	// Cut command
	Mode string `json:"mode,omitempty"` // full, partial

	// Raw command
	Data RawBytes `json:"data,omitempty"`
	Hex  string   `json:"hex,omitempty"`

	// Item command
	LeftSide   []Command `json:"left_side,omitempty"`
	RightSide  []Command `json:"right_side,omitempty"`
	WidthRatio string    `json:"width_ratio,omitempty"`

	// Divider command
	Char   string `json:"char,omitempty"`
	Length int    `json:"length,omitempty"`

	// Barcode command
	Format   string `json:"format,omitempty"`
	Height   int    `json:"height,omitempty"`
	Width    int    `json:"width,omitempty"` // module width for barcodes, dots for images
	Position string `json:"position,omitempty"`

	// QR code command
	ErrorCorrection string `json:"error_correction,omitempty"`
}

// IsBold reports whether the weight selects emphasized printing.
func (c *Command) IsBold() bool {
	switch c.Weight {
	case "bold", "semibold", "extrabold", "black", "heavy":
		return true
	}
	return false
}
