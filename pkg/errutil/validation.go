package errutil

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ValidationDetails lists the failed fields of a validator error. Other
// errors yield no details.
func ValidationDetails(err error) []Detail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make([]Detail, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details = append(details, Detail{Field: fe.Field(), Message: "failed on " + rule})
	}
	return details
}
