// Defined API errors for the form engine. Every error carries a stable
// numeric code, the HTTP status to answer with, and both an english and a
// spanish message (the admin UI of the hosting application is spanish).
package apierrors

import (
	"fmt"
	"net/http"
)

type DefinedError struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"-"`
	Err        string `json:"error"`
	EsErr      string `json:"es_error,omitempty"`
}

func (e DefinedError) Error() string {
	return e.Err
}

// WithFormattedMessage substitutes the format verbs of both messages with
// the same arguments.
func (e DefinedError) WithFormattedMessage(args ...interface{}) DefinedError {
	e.Err = fmt.Sprintf(e.Err, args...)
	e.EsErr = fmt.Sprintf(e.EsErr, args...)
	return e
}

var (
	// 1*** - generic errors
	ErrGeneric        = DefinedError{Code: 1001, StatusCode: http.StatusBadRequest, Err: "generic API error", EsErr: "Error interno, intente de nuevo"}
	ErrEntityTooLarge = DefinedError{Code: 1002, StatusCode: http.StatusRequestEntityTooLarge, Err: "request entity too large", EsErr: "La solicitud excede el tamaño permitido"}

	// 2*** - form definition errors
	ErrFormNotFound        = DefinedError{Code: 2001, StatusCode: http.StatusNotFound, Err: "form not found", EsErr: "Formulario no encontrado"}
	ErrFormBadRequest      = DefinedError{Code: 2002, StatusCode: http.StatusBadRequest, Err: "bad form request", EsErr: "Solicitud de formulario inválida"}
	ErrFormRequestValidate = DefinedError{Code: 2003, StatusCode: http.StatusBadRequest, Err: "form payload validation failed", EsErr: "Los datos del formulario no son válidos"}
	ErrFormSlugConflict    = DefinedError{Code: 2004, StatusCode: http.StatusConflict, Err: "form with that slug already exists", EsErr: "Ya existe un formulario con ese identificador"}
	ErrFormCheckFields     = DefinedError{Code: 2005, StatusCode: http.StatusBadRequest, Err: "invalid field configuration: %s", EsErr: "Configuración de campos inválida: %s"}
	ErrFormInactive        = DefinedError{Code: 2006, StatusCode: http.StatusNotFound, Err: "form is not active", EsErr: "El formulario no está activo"}

	// 3*** - submission errors
	ErrSubmissionInvalid  = DefinedError{Code: 3001, StatusCode: http.StatusUnprocessableEntity, Err: "submission validation failed", EsErr: "El envío contiene errores de validación"}
	ErrSubmissionNotFound = DefinedError{Code: 3002, StatusCode: http.StatusNotFound, Err: "submission not found", EsErr: "Envío no encontrado"}
	ErrFileTooLarge       = DefinedError{Code: 3003, StatusCode: http.StatusRequestEntityTooLarge, Err: "uploaded file too large", EsErr: "El archivo adjunto excede el tamaño permitido"}
	ErrFileStoreFailed    = DefinedError{Code: 3004, StatusCode: http.StatusInternalServerError, Err: "failed to store uploaded file", EsErr: "No se pudo guardar el archivo adjunto"}

	// 4*** - export errors
	ErrExportFailed = DefinedError{Code: 4001, StatusCode: http.StatusInternalServerError, Err: "submissions export failed", EsErr: "No se pudo exportar los envíos"}
)
