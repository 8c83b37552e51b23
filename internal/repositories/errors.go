package repositories

import "errors"

// ErrNoTransition — o CAS de status não casou (estado mudou por baixo).
// Quem chama deve reler a entidade e decidir de novo.
var ErrNoTransition = errors.New("transição não aplicada: estado corrente divergiu")
