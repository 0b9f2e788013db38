package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/clipclash/clipclash-backend/pkg/errors"

	"github.com/clipclash/clipclash-backend/pkg/enums"
)

// QueryInt parses an optional integer query parameter, returning fallback
// when absent.
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{name: "must be an integer"})
	}
	return value, nil
}

// QueryTransactionKind parses an optional kind filter.
func QueryTransactionKind(r *http.Request) (*enums.TransactionKind, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("kind"))
	if raw == "" {
		return nil, nil
	}
	kind, err := enums.ParseTransactionKind(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{"kind": "unknown transaction kind"})
	}
	return &kind, nil
}
