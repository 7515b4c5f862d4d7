package editor

import (
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/edtypes"
)

// Реэкспорт типов из edtypes
type (
	TextAlign   = edtypes.TextAlign
	Document    = edtypes.Document
	Heading     = edtypes.Heading
	Paragraph   = edtypes.Paragraph
	Text        = edtypes.Text
	ListElement = edtypes.ListElement
	List        = edtypes.List
	Quote       = edtypes.Quote
	Code        = edtypes.Code
	Image       = edtypes.Image
	Video       = edtypes.Video
	HardBreak   = edtypes.HardBreak
)

const (
	LeftAlign   = edtypes.LeftAlign
	CenterAlign = edtypes.CenterAlign
	RightAlign  = edtypes.RightAlign
)

var (
	PlainText = edtypes.PlainText
)
