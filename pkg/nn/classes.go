package nn

import "fmt"

// Class is the unified label space shared by every dataset we merge
type Class int

const (
	ClassCivilian Class = 0
	ClassSoldier  Class = 1
)

// ClassNames are indexed by Class
var ClassNames = []string{
	"civilian",
	"soldier",
}

func (c Class) String() string {
	if c.Valid() {
		return ClassNames[c]
	}
	return fmt.Sprintf("class%d", int(c))
}

func (c Class) Valid() bool {
	return c >= 0 && int(c) < len(ClassNames)
}
