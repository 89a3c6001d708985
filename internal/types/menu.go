// internal/types/menu.go
package types

import "strconv"

// MenuOption is one of the numbered commands a customer can type.
type MenuOption int

const (
	MenuCustomerInfo MenuOption = iota + 1
	MenuBillInfo
	MenuPaymentHistory
	MenuPayBill
	MenuNewConnection
	MenuComplaint
	MenuComplaintStatus
	MenuOutageInfo
	MenuOfficeLocation
)

// MenuOptions lists every option in the order it is shown to customers.
var MenuOptions = []MenuOption{
	MenuCustomerInfo,
	MenuBillInfo,
	MenuPaymentHistory,
	MenuPayBill,
	MenuNewConnection,
	MenuComplaint,
	MenuComplaintStatus,
	MenuOutageInfo,
	MenuOfficeLocation,
}

var menuLabels = map[MenuOption]string{
	MenuCustomerInfo:    "Informasi Pelanggan",
	MenuBillInfo:        "Informasi Tagihan",
	MenuPaymentHistory:  "Riwayat Pembayaran",
	MenuPayBill:         "Pembayaran Tagihan",
	MenuNewConnection:   "Pemasangan Baru",
	MenuComplaint:       "Pengaduan Pelanggan",
	MenuComplaintStatus: "Status Pengaduan",
	MenuOutageInfo:      "Informasi Gangguan",
	MenuOfficeLocation:  "Kantor Pelayanan",
}

// ParseMenuOption accepts exactly one digit between 1 and 9.
func ParseMenuOption(text string) (MenuOption, bool) {
	if len(text) != 1 || text[0] < '1' || text[0] > '9' {
		return 0, false
	}
	return MenuOption(text[0] - '0'), true
}

func (o MenuOption) Label() string {
	return menuLabels[o]
}

// Topic returns the topic selected by the option, or TopicNone for options
// that do not start a customer-number lookup.
func (o MenuOption) Topic() Topic {
	switch o {
	case MenuCustomerInfo:
		return TopicCustomer
	case MenuBillInfo:
		return TopicBill
	case MenuPaymentHistory:
		return TopicHistory
	}
	return TopicNone
}

func (o MenuOption) String() string {
	return strconv.Itoa(int(o))
}
