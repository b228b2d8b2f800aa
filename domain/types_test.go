package domain

import "testing"

func TestVenueString(t *testing.T) {
	if BinanceSpot.String() != "binance_spot" {
		t.Errorf("got %s", BinanceSpot.String())
	}
	if Upbit.String() != "upbit" {
		t.Errorf("got %s", Upbit.String())
	}
}

func TestVenuesEnumeratesAll(t *testing.T) {
	vs := Venues()
	if len(vs) != 7 {
		t.Fatalf("expected 7 venues, got %d", len(vs))
	}
	if vs[0] != BinanceSpot || vs[len(vs)-1] != Upbit {
		t.Errorf("unexpected ordering: %+v", vs)
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	cases := map[OrderStatus]bool{
		New:             false,
		PartiallyFilled: false,
		Filled:          true,
		Canceled:        true,
		Rejected:        true,
		Expired:         true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestSideString(t *testing.T) {
	if Buy.String() != "buy" || Sell.String() != "sell" {
		t.Errorf("unexpected side strings: %s %s", Buy, Sell)
	}
}
