package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		StatusResponse{
			RequestID: requestID,
			Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			Message:   "Hello. Book records api is available. Enjoy :)",
		},
	); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send status response", zap.Error(err))
	}
}

// StatusResponse is the data model sent when status endpoint is called.
type StatusResponse struct {
	RequestID string `json:"requestid"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// bookErrorStatus maps a book operation failure onto its http status code.
func bookErrorStatus(err error) int {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrBookNotFound):
		return http.StatusNotFound
	case IsDuplicateBook(err):
		return http.StatusConflict
	case errors.As(err, &verr), errors.Is(err, ErrConstraintFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrJournalDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeBookError logs the failure and sends its api error. Constraint
// violations carry their field and reason as data.
func (api *APIHandler) writeBookError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	logger := api.GetLoggerFromContext(r.Context())
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	var data interface{} = EmptyData
	var verr *ValidationError
	if errors.As(err, &verr) {
		data = map[string]string{
			"field":   verr.Field,
			"reason":  string(verr.Reason),
			"message": verr.Message(),
		}
	} else if status < http.StatusInternalServerError {
		data = map[string]string{"message": err.Error()}
	}

	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	} else {
		logger.Info(message, zap.Int("status", status), zap.Error(err))
	}
	if werr := WriteErrorResponse(r.Context(), w, NewAPIError(requestID, status, message, data)); werr != nil {
		logger.Error("failed to send error response", zap.Error(werr))
	}
}

func (api *APIHandler) writeBookResponse(w http.ResponseWriter, r *http.Request, status int, message string, total *int, data interface{}) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	if err := WriteResponse(r.Context(), w, GenericResponse(requestID, status, message, total, data)); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.Error(err))
	}
}

// bookID reads the id path parameter and answers 400 when it is invalid.
func (api *APIHandler) bookID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (int64, bool) {
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.writeBookError(w, r, http.StatusBadRequest, "book id provided is not valid", err)
		return 0, false
	}
	return id, true
}

// CreateBook godoc
// @Summary Create a book
// @Accept json
// @Produce json
// @Param book body BookInput true "book to create"
// @Success 201 {object} APIResponse
// @Failure 400,409,422 {object} APIError
// @Router /v1/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in BookInput
	if err := DecodeCreateBookRequestBody(r, &in); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrConstraintFailed) {
			status = http.StatusUnprocessableEntity
		}
		api.writeBookError(w, r, status, "failed to create the book", err)
		return
	}

	book, err := api.bookService.Create(r.Context(), in)
	if err != nil {
		api.writeBookError(w, r, bookErrorStatus(err), "failed to create the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create book", zap.Int64("book.id", book.ID))
	api.writeBookResponse(w, r, http.StatusCreated, "Book created successfully.", nil, book)
}

// GetAllBooks godoc
// @Summary List all books
// @Produce json
// @Success 200 {object} APIResponse
// @Router /v1/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	books, err := api.bookService.GetAll(r.Context())
	if err != nil {
		api.writeBookError(w, r, http.StatusInternalServerError, "failed to get all books", err)
		return
	}
	total := len(books)
	api.writeBookResponse(w, r, http.StatusOK, "All books fetched successfully.", &total, books)
}

// GetOneBook godoc
// @Summary Fetch a book
// @Produce json
// @Param id path int true "book id"
// @Success 200 {object} APIResponse
// @Failure 400,404 {object} APIError
// @Router /v1/books/{id} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := api.bookID(w, r, ps)
	if !ok {
		return
	}
	book, err := api.bookService.GetOne(r.Context(), id)
	if err != nil {
		api.writeBookError(w, r, bookErrorStatus(err), "failed to get the book", err)
		return
	}
	api.writeBookResponse(w, r, http.StatusOK, "Book fetched successfully.", nil, book)
}

// UpdateBook godoc
// @Summary Change one or more fields of a book
// @Description Only name, author, year_published, book_type and status can be changed.
// @Accept json
// @Produce json
// @Param id path int true "book id"
// @Success 200 {object} APIResponse
// @Failure 400,404,409,422 {object} APIError
// @Router /v1/books/{id} [patch]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := api.bookID(w, r, ps)
	if !ok {
		return
	}
	changes, err := DecodeUpdateBookRequestBody(r)
	if err != nil {
		api.writeBookError(w, r, http.StatusBadRequest, "failed to update the book", err)
		return
	}

	book, err := api.bookService.Update(r.Context(), id, changes)
	if err != nil {
		api.writeBookError(w, r, bookErrorStatus(err), "failed to update the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to update book", zap.Int64("book.id", book.ID))
	api.writeBookResponse(w, r, http.StatusOK, "Book updated successfully.", nil, book)
}

// DeleteOneBook godoc
// @Summary Delete a book
// @Produce json
// @Param id path int true "book id"
// @Success 200 {object} APIResponse
// @Failure 400,404 {object} APIError
// @Router /v1/books/{id} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := api.bookID(w, r, ps)
	if !ok {
		return
	}
	book, err := api.bookService.Delete(r.Context(), id)
	if err != nil {
		api.writeBookError(w, r, bookErrorStatus(err), "failed to delete the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to delete book", zap.Int64("book.id", id))
	api.writeBookResponse(w, r, http.StatusOK, "Book deleted successfully.", nil, book)
}

// GetBookHistory godoc
// @Summary List the journaled changes of a book
// @Produce json
// @Param id path int true "book id"
// @Success 200 {object} APIResponse
// @Failure 400,501 {object} APIError
// @Router /v1/books/{id}/history [get]
func (api *APIHandler) GetBookHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := api.bookID(w, r, ps)
	if !ok {
		return
	}
	events, err := api.bookService.History(r.Context(), id)
	if err != nil {
		api.writeBookError(w, r, bookErrorStatus(err), "failed to get the book history", err)
		return
	}
	total := len(events)
	api.writeBookResponse(w, r, http.StatusOK, "Book history fetched successfully.", &total, events)
}
