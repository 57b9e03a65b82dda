package server

import (
	"GDALedger/internal/auction"
	"GDALedger/internal/core"
	"GDALedger/internal/ingestion"
	"GDALedger/internal/ledger"
	"GDALedger/internal/query"
	"GDALedger/internal/state"
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeTable = []struct {
	err  error
	code codes.Code
}{
	{auction.ErrAuctionNotStarted, codes.FailedPrecondition},
	{auction.ErrAuctionEnded, codes.FailedPrecondition},
	{auction.ErrAuctionActive, codes.FailedPrecondition},
	{auction.ErrNoAuctioneerProgramSet, codes.FailedPrecondition},
	{ledger.ErrInsufficientFunds, codes.FailedPrecondition},

	{auction.ErrInvalidAuctioneer, codes.PermissionDenied},
	{auction.ErrNoValidSignerPresent, codes.PermissionDenied},

	{auction.ErrPublicKeyMismatch, codes.InvalidArgument},
	{auction.ErrBumpSeedMismatch, codes.InvalidArgument},
	{auction.ErrMetadataMismatch, codes.InvalidArgument},
	{auction.ErrInvalidListingParams, codes.InvalidArgument},
	{auction.ErrInvalidListingData, codes.InvalidArgument},
	{auction.ErrInvalidTokenAmount, codes.InvalidArgument},
	{auction.ErrDifferentScale, codes.InvalidArgument},
	{ledger.ErrInvalidPubkey, codes.InvalidArgument},
	{ingestion.ErrMalformed, codes.InvalidArgument},
	{core.ErrMissingIdempotencyKey, codes.InvalidArgument},

	{auction.ErrNumericalOverflow, codes.OutOfRange},
	{ledger.ErrBalanceOverflow, codes.OutOfRange},

	{auction.ErrListingExists, codes.AlreadyExists},
	{auction.ErrAccountExists, codes.AlreadyExists},

	{auction.ErrListingNotFound, codes.NotFound},
	{auction.ErrOrderNotFound, codes.NotFound},
	{state.ErrAccountNotFound, codes.NotFound},
	{query.ErrNotFound, codes.NotFound},

	{core.ErrDispatcherStopped, codes.Unavailable},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// Code maps an engine, query or transport error to a gRPC code.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	for _, c := range codeTable {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return codes.Internal
}

// ToStatus converts err to a status error. Internal errors keep a generic
// message; everything else carries the error text.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := Code(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
