package listing

import "github.com/catalogsync/backend/internal/domain/shared"

var (
	ErrProductNotFound     = shared.NewDomainError(shared.CodeNotFound, "Product record not found")
	ErrInvalidTransition   = shared.NewDomainError(shared.CodeInvalidTransition, "Transition not allowed from the current status")
	ErrMissingSourceURL    = shared.NewDomainError(shared.CodeMissingField, "source_url is required")
	ErrMissingSupplier     = shared.NewDomainError(shared.CodeMissingField, "supplier_id is required")
	ErrInvalidSourceURL    = shared.NewDomainError(shared.CodeInvalidInput, "source_url must be an absolute http(s) URL")
	ErrSupplierInvalid     = shared.NewDomainError(shared.CodeSupplierInvalid, "Supplier is not allowed to ingest listings")
	ErrRejectNotesRequired = shared.NewDomainError(shared.CodeMissingField, "Rejection requires review notes")
	ErrActorRequired       = shared.NewDomainError(shared.CodeMissingField, "Transition requires an actor")
	ErrNotActive           = shared.NewDomainError(shared.CodeInvalidState, "Product record is not active")
	ErrInvalidPrice        = shared.NewDomainError(shared.CodeInvalidInput, "Price cannot be negative")
	ErrInvalidStock        = shared.NewDomainError(shared.CodeInvalidInput, "Stock cannot be negative")
	ErrVersionConflict     = shared.NewDomainError(shared.CodeConflict, "Product record was modified concurrently")
)
