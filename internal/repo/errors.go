package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrAlreadyRotated indica refresh token já consumido por outra rotação.
	ErrAlreadyRotated = errors.New("refresh token já rotacionado")
	// ErrDuplicate indica violação de unicidade (e-mail ou username em uso).
	ErrDuplicate = errors.New("registro duplicado")
)
