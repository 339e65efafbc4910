package converter

import (
	"errors"
	"fmt"
)

// Kind - категория ошибки конвертации файла.
type Kind string

// Категории ошибок.
const (
	KindMissingFile               Kind = "MissingFile"
	KindEmptyFile                 Kind = "EmptyFile"
	KindOutputDirError            Kind = "OutputDirError"
	KindMimeMismatch              Kind = "MimeMismatch"
	KindExternalToolUnavailable   Kind = "ExternalToolUnavailable"
	KindExternalToolFailed        Kind = "ExternalToolFailed"
	KindLibraryBridgeDecodeFailed Kind = "LibraryBridgeDecodeFailed"
	KindLibraryBridgeEncodeFailed Kind = "LibraryBridgeEncodeFailed"
	KindFrameReadFailed           Kind = "FrameReadFailed"
	KindAnimatedSaveFailed        Kind = "AnimatedSaveFailed"
	KindStaticSaveFailed          Kind = "StaticSaveFailed"
	KindUnhandledException        Kind = "UnhandledException"
)

// ConversionError - ошибка конвертации конкретного файла.
type ConversionError struct {
	// Kind - категория.
	Kind Kind

	// Path - исходный файл.
	Path string

	// Err - причина.
	Err error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// newError создаёт ConversionError.
func newError(kind Kind, path string, err error) *ConversionError {
	return &ConversionError{Kind: kind, Path: path, Err: err}
}

// KindOf извлекает категорию из цепочки ошибок. Пустая строка - категории нет.
func KindOf(err error) Kind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
