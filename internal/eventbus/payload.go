package eventbus

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// PayloadVersion версия схемы полезной нагрузки
const PayloadVersion = 1

// EncodePayload сериализует поля события в google.protobuf.Struct.
// Допустимы значения, которые принимает structpb.NewValue.
func EncodePayload(fields map[string]interface{}) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("event payload: %w", err)
	}
	return proto.Marshal(s)
}

// DecodePayload восстанавливает поля события. Числа возвращаются как float64.
func DecodePayload(data []byte) (map[string]interface{}, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("event payload: %w", err)
	}
	return s.AsMap(), nil
}
