package astros

import (
	"errors"
	"fmt"
)

const (
	DefaultURL      = "http://api.open-notify.org/astros.json"
	DefaultGreeting = "Hello!"
	// NumberKey is the xcom key the head count is published under.
	NumberKey = "number_of_people_in_space"
)

var ErrMissingField = errors.New("missing field")

// Person is one entry of the "people" list. Fields beyond name and craft are
// carried through untouched.
type Person map[string]any

func (p Person) lookup(field string) (string, error) {
	v, ok := p[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, field)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func (p Person) Name() (string, error)  { return p.lookup("name") }
func (p Person) Craft() (string, error) { return p.lookup("craft") }

type Roster struct {
	Number int      `json:"number"`
	People []Person `json:"people"`
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}
