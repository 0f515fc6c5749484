package monday

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ID is an item or board identifier. The platform sends ids as JSON numbers
// in webhook payloads and as strings in API responses; both decode here.
type ID string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrapf(err, "invalid id %s", string(b))
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// ColumnValue is a single column on an item.
type ColumnValue struct {
	ID    string          `json:"id"`
	Text  string          `json:"text"`
	Value json.RawMessage `json:"value"`
}

// Columns is a lookup of column values keyed by column id.
type Columns map[string]ColumnValue

// Text returns the display text of a column, or "" if the column is absent.
func (c Columns) Text(id string) string {
	return c[id].Text
}

// Has reports whether the column was returned.
func (c Columns) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// BoardRef is the board an item belongs to.
type BoardRef struct {
	ID ID `json:"id"`
}

// Item is an item as returned by the items query.
type Item struct {
	ID           ID            `json:"id"`
	Name         string        `json:"name"`
	Board        *BoardRef     `json:"board,omitempty"`
	ColumnValues []ColumnValue `json:"column_values"`

	// Columns is built from ColumnValues after fetch.
	Columns Columns `json:"-"`
}

func (it *Item) index() {
	it.Columns = make(Columns, len(it.ColumnValues))
	for _, cv := range it.ColumnValues {
		it.Columns[cv.ID] = cv
	}
}

// ItemRef is an item returned by a board search.
type ItemRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// DateValue is the column value payload for a date column.
type DateValue struct {
	Date string `json:"date"`
}

// graphQLRequest is the body posted to the API endpoint.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the envelope of every API response. Depending on the
// failure the platform reports errors either in the standard errors array
// or in the top-level error_message/error_code fields.
type graphQLResponse struct {
	Data         json.RawMessage `json:"data"`
	Errors       []graphQLError  `json:"errors,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type itemsData struct {
	Items []Item `json:"items"`
}

type searchData struct {
	Boards []struct {
		ItemsPage struct {
			Items []ItemRef `json:"items"`
		} `json:"items_page"`
	} `json:"boards"`
}

type changeData struct {
	ChangeMultipleColumnValues *ItemRef `json:"change_multiple_column_values"`
}

type createData struct {
	CreateItem *ItemRef `json:"create_item"`
}
