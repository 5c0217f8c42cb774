package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixDocument    = "doc"
	PrefixAnnotation  = "annot"
	PrefixTransaction = "txn"
	PrefixAsset       = "asset"
	PrefixSession     = "sess"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewDocumentID() string    { return New(PrefixDocument) }
func NewAnnotationID() string  { return New(PrefixAnnotation) }
func NewTransactionID() string { return New(PrefixTransaction) }
func NewAssetID() string       { return New(PrefixAsset) }
func NewSessionID() string     { return New(PrefixSession) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
