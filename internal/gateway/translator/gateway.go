package translator

import "context"

// Gateway abstracts the external machine-translation service. Implementations
// must preserve input order in TranslateBatch results.
type Gateway interface {
	// TranslateBatch translates texts from one language to another, returning
	// one translation per input in the same order.
	TranslateBatch(ctx context.Context, texts []string, from, to string) ([]string, error)

	// IsValidLanguageCode reports whether the code is on the allow-list.
	IsValidLanguageCode(code string) bool

	// DefaultLanguage is the pivot language the knowledge base is kept in.
	DefaultLanguage() string
}
