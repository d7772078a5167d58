package websocket

import "errors"

// ErrClientQueueFull возвращается, когда исходящий буфер соединения
// переполнен и доставка с гарантией невозможна
var ErrClientQueueFull = errors.New("client message queue is full")
