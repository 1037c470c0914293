package main

import (
	"errors"

	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

// Exit codes: 1 general failure, 2 configuration, 3 invalid input.
const (
	exitConfig     = 2
	exitValidation = 3
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	if mlferrors.IsCode(err, mlferrors.ErrCodeValidation) {
		return exitValidation
	}
	return 1
}
