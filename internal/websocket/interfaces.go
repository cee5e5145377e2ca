package websocket

// HubInterface объединяет возможности хаба, нужные Manager.
type HubInterface interface {
	// BroadcastJSON отправляет структуру JSON всем клиентам, включая другие инстансы
	BroadcastJSON(v interface{}) error

	// SendJSON отправляет структуру JSON одному клиенту
	SendJSON(client *Client, v interface{}) error

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
