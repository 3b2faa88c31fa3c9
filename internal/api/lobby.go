package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/victornm/sketch/internal/domain"
)

const (
	lobbyServiceName = "sketch.v1.LobbyService"

	methodListPublicRooms = "/" + lobbyServiceName + "/ListPublicRooms"
	methodGetLeaderboard  = "/" + lobbyServiceName + "/GetLeaderboard"
)

// LobbyServiceServer serves the read-only lobby projections over gRPC. The
// messages are well-known types: rooms and entries travel as a Struct holding
// their JSON form.
type LobbyServiceServer interface {
	ListPublicRooms(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetLeaderboard(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error)
}

func RegisterLobbyServiceServer(s grpc.ServiceRegistrar, srv LobbyServiceServer) {
	s.RegisterService(&lobbyServiceDesc, srv)
}

var lobbyServiceDesc = grpc.ServiceDesc{
	ServiceName: lobbyServiceName,
	HandlerType: (*LobbyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListPublicRooms",
			Handler:    listPublicRoomsHandler,
		},
		{
			MethodName: "GetLeaderboard",
			Handler:    getLeaderboardHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sketch/v1/lobby.proto",
}

func listPublicRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LobbyServiceServer).ListPublicRooms(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodListPublicRooms,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LobbyServiceServer).ListPublicRooms(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getLeaderboardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LobbyServiceServer).GetLeaderboard(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodGetLeaderboard,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LobbyServiceServer).GetLeaderboard(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}

// LobbyClient calls LobbyService and decodes the replies into domain types.
type LobbyClient struct {
	cc grpc.ClientConnInterface
}

func NewLobbyClient(cc grpc.ClientConnInterface) *LobbyClient {
	return &LobbyClient{cc: cc}
}

func (c *LobbyClient) ListPublicRooms(ctx context.Context, opts ...grpc.CallOption) ([]domain.RoomSummary, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListPublicRooms, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	var resp ListRoomsResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

func (c *LobbyClient) GetLeaderboard(ctx context.Context, limit int32, opts ...grpc.CallOption) ([]domain.LeaderboardEntry, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetLeaderboard, wrapperspb.Int32(limit), out, opts...); err != nil {
		return nil, err
	}

	var resp LeaderboardResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("to struct: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("from struct: %w", err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
