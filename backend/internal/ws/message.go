package ws

import "encoding/json"

// ClientMessage 入站帧：{"event": "...", "data": {...}}
// data 保留原始字节，由网关按事件名解码
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerMessage 出站帧，data 可以是对象也可以是字符串（userLeft）
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
