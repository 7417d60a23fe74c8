package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/JonMunkholm/coursedesk/internal/roster"
)

const maxBodyBytes = 1 << 20

var (
	validate   *validator.Validate
	translator ut.Translator
)

const enrollCourseTag = "enrollcourse"

func init() {
	validate = validator.New()

	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(enrollCourseTag, func(fl validator.FieldLevel) bool {
		return slices.Contains(roster.EnrollCourses, fl.Field().String())
	})
	_ = validate.RegisterTranslation(enrollCourseTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return "must be one of " + strings.Join(roster.EnrollCourses, ", ")
		})
}

// actionRequest begins or performs a bulk action. Step "begin" opens the
// input step; anything else performs.
type actionRequest struct {
	Action  string `json:"action" validate:"required,oneof=enroll email remove"`
	Step    string `json:"step" validate:"omitempty,oneof=begin perform"`
	Course  string `json:"course" validate:"omitempty,enrollcourse"`
	Subject string `json:"subject" validate:"max=200"`
	Body    string `json:"body" validate:"max=5000"`
	Confirm bool   `json:"confirm"`
}

type mappingRequest struct {
	Field  string `json:"field" validate:"required,oneof=name email course"`
	Header string `json:"header" validate:"max=200"`
}

type segmentRequest struct {
	Name  string       `json:"name" validate:"max=80"`
	Rules roster.Rules `json:"rules"`
}

type notesRequest struct {
	Text string `json:"text" validate:"max=20000"`
}

type commentRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

type stateRequest struct {
	SelectedID string  `json:"selectedId" validate:"required,max=200"`
	Time       float64 `json:"time" validate:"gte=0"`
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{fields: map[string]string{"body": "request body is empty"}}
		}
		return &requestError{fields: map[string]string{"body": fmt.Sprintf("malformed JSON: %v", err)}}
	}
	return validateStruct(dst)
}

// decodeAction reads an actionRequest from either a JSON body or the
// url-encoded form HTMX posts for hx-vals and plain forms.
func decodeAction(w http.ResponseWriter, r *http.Request) (actionRequest, error) {
	var req actionRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return req, &requestError{fields: map[string]string{"body": fmt.Sprintf("malformed form: %v", err)}}
	}
	req.Action = r.PostFormValue("action")
	req.Step = r.PostFormValue("step")
	req.Course = r.PostFormValue("course")
	req.Subject = r.PostFormValue("subject")
	req.Body = r.PostFormValue("body")
	if raw := r.PostFormValue("confirm"); raw != "" {
		confirm, err := strconv.ParseBool(raw)
		if err != nil {
			return req, &requestError{fields: map[string]string{"confirm": "must be true or false"}}
		}
		req.Confirm = confirm
	}
	return req, validateStruct(&req)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	return &requestError{fields: fields}
}
