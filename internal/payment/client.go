package payment

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrInvalidRequest はリクエストボディをRPCメッセージに変換できなかったことを表す。
var ErrInvalidRequest = errors.New("リクエストボディが不正です")

var (
	unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}
	marshalOptions   = protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}
)

// Client は決済サービスへの長寿命なgRPCクライアント。
// 接続は起動時に1度だけ確立し、各呼び出しは独立した単項RPCとして発行する。
type Client struct {
	conn    *grpc.ClientConn
	methods map[Method]protoreflect.MethodDescriptor
}

// Dial は決済サービスへの接続を確立する。
// 接続は遅延確立されるため、起動時に決済サービスが停止していてもエラーにはならない。
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if target == "" {
		return nil, errors.New("決済サービスの接続先が設定されていません")
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.Dial(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("決済サービスへの接続に失敗: %w", err)
	}
	client, err := NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

// NewClient は確立済みの接続からClientを生成する。
func NewClient(conn *grpc.ClientConn) (*Client, error) {
	svc, err := ServiceDescriptor()
	if err != nil {
		return nil, err
	}
	methods := make(map[Method]protoreflect.MethodDescriptor, len(Methods))
	for _, m := range Methods {
		md := svc.Methods().ByName(protoreflect.Name(m))
		if md == nil {
			return nil, fmt.Errorf("メソッド %s が見つかりません", m)
		}
		methods[m] = md
	}
	return &Client{conn: conn, methods: methods}, nil
}

// Call はJSONのリクエストボディでRPCを発行し、応答をJSONで返す。
// bodyが空の場合は空のメッセージを送信する。
// RPCが失敗した場合はgRPCのステータスを保持したエラーを返す。
func (c *Client) Call(ctx context.Context, method Method, body []byte) ([]byte, error) {
	md, ok := c.methods[method]
	if !ok {
		return nil, fmt.Errorf("未知のメソッドです: %s", method)
	}

	req := dynamicpb.NewMessage(md.Input())
	if len(body) > 0 {
		if err := unmarshalOptions.Unmarshal(body, req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	resp := dynamicpb.NewMessage(md.Output())
	if err := c.conn.Invoke(ctx, method.FullName(), req, resp); err != nil {
		return nil, fmt.Errorf("%sの呼び出しに失敗: %w", method, err)
	}

	out, err := marshalOptions.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%sの応答の変換に失敗: %w", method, err)
	}
	return out, nil
}

// ListPayments はGetAllPaymentsを呼び出し、決済の配列をJSONで返す。
func (c *Client) ListPayments(ctx context.Context) ([]byte, error) {
	md := c.methods[MethodGetAllPayments]
	resp := dynamicpb.NewMessage(md.Output())
	if err := c.conn.Invoke(ctx, MethodGetAllPayments.FullName(), dynamicpb.NewMessage(md.Input()), resp); err != nil {
		return nil, fmt.Errorf("%sの呼び出しに失敗: %w", MethodGetAllPayments, err)
	}

	payments := resp.Get(md.Output().Fields().ByName("payments")).List()
	out := []byte("[")
	for i := 0; i < payments.Len(); i++ {
		if i > 0 {
			out = append(out, ',')
		}
		b, err := marshalOptions.Marshal(payments.Get(i).Message().Interface())
		if err != nil {
			return nil, fmt.Errorf("%sの応答の変換に失敗: %w", MethodGetAllPayments, err)
		}
		out = append(out, b...)
	}
	return append(out, ']'), nil
}

// Code はエラーに含まれるgRPCステータスコードを返す。
// コンテキストの期限切れ・キャンセルはそれぞれDeadlineExceeded・Canceledとして扱う。
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, ErrInvalidRequest):
		return codes.InvalidArgument
	}
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code()
	}
	return codes.Unknown
}

// Close は接続を閉じる。
func (c *Client) Close() error {
	return c.conn.Close()
}
