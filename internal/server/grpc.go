package server

import (
	"GDALedger/internal/event"
	"GDALedger/internal/query"
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gda.v1.AuctionService"

// AuctionServer is the handler type of the service description.
type AuctionServer interface {
	Execute(ctx context.Context, evt event.Event) (*CommandResponse, error)
	QuotePrice(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error)
	GetListing(ctx context.Context, req *ListingRequest) (*ListingView, error)
	ListOrders(ctx context.Context, req *OrdersRequest) (*OrdersResponse, error)
	GetBalance(ctx context.Context, req *BalanceRequest) (*query.BalanceResponse, error)
	ListEvents(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
	VerifyIntegrity(ctx context.Context, req *Empty) (*query.IntegrityReport, error)
}

func unary[Req, Resp any](name string, call func(AuctionServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AuctionServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// command builds the method for one command type; the request body is the
// command itself.
func command[C any, PC interface {
	*C
	event.Event
}](name string) grpc.MethodDesc {
	return unary(name, func(s AuctionServer, ctx context.Context, req *C) (*CommandResponse, error) {
		return s.Execute(ctx, PC(req))
	})
}

// ServiceDesc describes gda.v1.AuctionService. Messages are JSON encoded
// with the codec registered under CodecName.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuctionServer)(nil),
	Methods: []grpc.MethodDesc{
		command[event.RegisterHouse]("RegisterHouse"),
		command[event.RegisterAuctioneer]("RegisterAuctioneer"),
		command[event.RegisterAsset]("RegisterAsset"),
		command[event.Deposit]("Deposit"),
		command[event.CreateListing]("CreateListing"),
		command[event.PlaceOrder]("PlaceOrder"),
		command[event.CloseListing]("CloseListing"),
		unary("QuotePrice", AuctionServer.QuotePrice),
		unary("GetListing", AuctionServer.GetListing),
		unary("ListOrders", AuctionServer.ListOrders),
		unary("GetBalance", AuctionServer.GetBalance),
		unary("ListEvents", AuctionServer.ListEvents),
		unary("VerifyIntegrity", AuctionServer.VerifyIntegrity),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gda/v1/auction.proto",
}

// Client calls the service over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

// Submit sends a command under its event type name.
func (c *Client) Submit(ctx context.Context, evt event.Event) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.invoke(ctx, evt.EventType().String(), evt, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) QuotePrice(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	out := new(QuoteResponse)
	if err := c.invoke(ctx, "QuotePrice", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetListing(ctx context.Context, req *ListingRequest) (*ListingView, error) {
	out := new(ListingView)
	if err := c.invoke(ctx, "GetListing", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
