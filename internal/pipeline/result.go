// Package pipeline implementa a cadeia fixa aplicada a todo comando/consulta:
// principal → carga de usuário → carga de equipe → validação → transação.
package pipeline

// Status classifica o desfecho de uma operação.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnauthorized
	StatusForbidden
	StatusBadRequest
	StatusConflict
	StatusDisabled
	StatusInternal
)

// Result é a união etiquetada devolvida por todo handler. Um único tipo
// genérico cobre respostas com e sem payload, dispensando qualquer
// inspeção de tipos em tempo de execução.
type Result[T any] struct {
	Status  Status
	Value   T
	Message string
}

// Ok produz resultado de sucesso com payload.
func Ok[T any](value T) Result[T] {
	return Result[T]{Status: StatusOK, Value: value}
}

// NotFound produz falha de entidade ausente.
func NotFound[T any]() Result[T] {
	return Result[T]{Status: StatusNotFound, Message: "registro não encontrado"}
}

// Unauthorized produz falha de credencial ausente ou inválida.
func Unauthorized[T any]() Result[T] {
	return Result[T]{Status: StatusUnauthorized, Message: "credenciais inválidas"}
}

// Forbidden produz negação uniforme, sem detalhar a regra que falhou.
func Forbidden[T any]() Result[T] {
	return Result[T]{Status: StatusForbidden, Message: "acesso negado"}
}

// BadRequest produz falha estrutural com mensagem específica.
func BadRequest[T any](message string) Result[T] {
	return Result[T]{Status: StatusBadRequest, Message: message}
}

// Conflict produz falha de estado inválido (ex.: token já rotacionado).
func Conflict[T any](message string) Result[T] {
	return Result[T]{Status: StatusConflict, Message: message}
}

// Disabled produz falha de funcionalidade desligada por configuração.
func Disabled[T any](message string) Result[T] {
	return Result[T]{Status: StatusDisabled, Message: message}
}

// Internal produz falha genérica para erros inesperados.
func Internal[T any]() Result[T] {
	return Result[T]{Status: StatusInternal, Message: "erro interno"}
}

// OK indica sucesso.
func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}
