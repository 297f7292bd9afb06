// Package paymenttest はテスト用のインプロセス決済サービスを提供する。
package paymenttest

import (
	"context"
	"net"
	"testing"

	"github.com/nao1215/stationgate/internal/payment"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// HandlerFunc はRPCを処理する。reqはリクエストメッセージのJSON（proto名）で、
// 戻り値のJSONが応答メッセージに変換される。エラーはgRPCステータスとして返る。
type HandlerFunc func(ctx context.Context, method payment.Method, req []byte) ([]byte, error)

// NewClient はhandlerで応答する決済サービスを起動し、そこに接続したClientを返す。
// サーバーとクライアントはテスト終了時に停止する。
func NewClient(t testing.TB, handler HandlerFunc) *payment.Client {
	t.Helper()

	svc, err := payment.ServiceDescriptor()
	if err != nil {
		t.Fatalf("ディスクリプタの構築に失敗: %v", err)
	}

	desc := grpc.ServiceDesc{
		ServiceName: payment.ServiceName,
		HandlerType: (*any)(nil),
	}
	for _, m := range payment.Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: string(m),
			Handler:    unaryHandler(m, svc.Methods().ByName(protoreflect.Name(m)), handler),
		})
	}

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	server.RegisterService(&desc, struct{}{})
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	client, err := payment.Dial("bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("テスト用決済サービスへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func unaryHandler(m payment.Method, md protoreflect.MethodDescriptor, handler HandlerFunc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		req := dynamicpb.NewMessage(md.Input())
		if err := dec(req); err != nil {
			return nil, err
		}
		reqJSON, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(req)
		if err != nil {
			return nil, err
		}

		respJSON, err := handler(ctx, m, reqJSON)
		if err != nil {
			return nil, err
		}
		resp := dynamicpb.NewMessage(md.Output())
		if err := protojson.Unmarshal(respJSON, resp); err != nil {
			return nil, err
		}
		return resp, nil
	}
}
