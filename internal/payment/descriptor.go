package payment

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ServiceName は決済サービスの完全修飾名。
const ServiceName = "payment.PaymentGrpcService"

// Method は決済サービスのRPCメソッド名。
type Method string

const (
	// MethodGetAllPayments は全決済を取得する。
	MethodGetAllPayments Method = "GetAllPayments"
	// MethodGetPayment はIDを指定して決済を取得する。
	MethodGetPayment Method = "GetPayment"
	// MethodCreatePayment は決済を作成する。
	MethodCreatePayment Method = "CreatePayment"
	// MethodUpdatePayment は決済を更新する。
	MethodUpdatePayment Method = "UpdatePayment"
	// MethodDeletePayment は決済を削除する。
	MethodDeletePayment Method = "DeletePayment"
)

// FullName は /package.Service/Method 形式のメソッドパスを返す。
func (m Method) FullName() string {
	return "/" + ServiceName + "/" + string(m)
}

// Methods は決済サービスの全メソッド。
var Methods = []Method{
	MethodGetAllPayments,
	MethodGetPayment,
	MethodCreatePayment,
	MethodUpdatePayment,
	MethodDeletePayment,
}

// paymentProto は payment.proto と同等のファイルディスクリプタ。
//
//	service PaymentGrpcService {
//	  rpc GetAllPayments (Empty) returns (PaymentList);
//	  rpc GetPayment (PaymentId) returns (Payment);
//	  rpc CreatePayment (Payment) returns (Payment);
//	  rpc UpdatePayment (Payment) returns (Payment);
//	  rpc DeletePayment (PaymentId) returns (DeleteResponse);
//	}
func paymentProto() *descriptorpb.FileDescriptorProto {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	field := func(name string, number int32, typ *descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(number),
			Label:  optional,
			Type:   typ,
		}
	}
	method := func(name Method, in, out string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(string(name)),
			InputType:  proto.String(".payment." + in),
			OutputType: proto.String(".payment." + out),
		}
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("payment.proto"),
		Package: proto.String("payment"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("Empty")},
			{
				Name: proto.String("Payment"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, str),
					field("user_id", 2, str),
					field("station_id", 3, str),
					field("amount", 4, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE.Enum()),
					field("currency", 5, str),
					field("status", 6, str),
					field("created_at", 7, str),
				},
			},
			{
				Name: proto.String("PaymentList"),
				Field: []*descriptorpb.FieldDescriptorProto{{
					Name:     proto.String("payments"),
					Number:   proto.Int32(1),
					Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String(".payment.Payment"),
				}},
			},
			{
				Name:  proto.String("PaymentId"),
				Field: []*descriptorpb.FieldDescriptorProto{field("id", 1, str)},
			},
			{
				Name: proto.String("DeleteResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("success", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL.Enum()),
					field("message", 2, str),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("PaymentGrpcService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method(MethodGetAllPayments, "Empty", "PaymentList"),
				method(MethodGetPayment, "PaymentId", "Payment"),
				method(MethodCreatePayment, "Payment", "Payment"),
				method(MethodUpdatePayment, "Payment", "Payment"),
				method(MethodDeletePayment, "PaymentId", "DeleteResponse"),
			},
		}},
	}
}

// ServiceDescriptor は決済サービスのサービスディスクリプタを返す。
func ServiceDescriptor() (protoreflect.ServiceDescriptor, error) {
	file, err := protodesc.NewFile(paymentProto(), nil)
	if err != nil {
		return nil, fmt.Errorf("payment.protoのディスクリプタ構築に失敗: %w", err)
	}
	svc := file.Services().ByName("PaymentGrpcService")
	if svc == nil {
		return nil, fmt.Errorf("サービス %s が見つかりません", ServiceName)
	}
	return svc, nil
}
