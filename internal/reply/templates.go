package reply

const menuTemplate = `{{define "menu"}}{{range $i, $o := .}}{{if $i}}
{{end}}{{$o}}. {{$o.Label}}{{end}}{{end}}`

const greetingTemplate = `Halo, selamat {{.Salutation}}! Saya adalah Bot Asisten {{.OrgName}}. Apa yang bisa Saya bantu?
{{template "menu" .Menu}}
Anda bisa mengetikan angka dari pilihan di atas sesuai dengan informasi yang dibutuhkan.`

const contextPromptTemplate = `Untuk melakukan pengecekan dengan nomor pelanggan yang berbeda, Anda bisa langsung mengetikan nomor pelanggan lagi.

Atau bisa mengetikan angka dari pilihan di bawah untuk mendapatkan informasi lainnya.
{{template "menu" .Menu}}`

const keywordNotFoundTemplate = `Mohon maaf, keyword yang Anda masukan tidak ada. Anda bisa memilih keyword yang ada di bawah dengan mengetikan angka.
{{template "menu" .Menu}}`

const customerTemplate = `Berikut adalah informasi dari Pelanggan dengan Nomor {{.Number}}.

Nomor Pelanggan : {{.Number}}
Nama Lengkap : {{.Name}}
Alamat : {{.Address}}
Kelurahan : {{.Kelurahan}}
Kecamatan : {{.Kecamatan}}
Rayon Baca : {{.ReadRoute}}
Golongan : {{.Golongan}}
Ukuran WM : {{.MeterSize}}
Status : {{.Status}}`

const billsTemplate = `Berikut adalah tagihan Anda dengan Nomor Pelanggan {{.Number}}.

{{range .Bills}}Periode {{month .Month}} {{.Year}}
Pemakaian Air : {{.Usage}} m3
Uang Air : {{rupiah .WaterCharge}}
Beban Tetap : {{rupiah .FixedCharge}}
Denda : {{rupiah .Penalty}}
Total : {{rupiah .Total}}

{{end}}Jumlah : {{.Count}} bulan
Total Tagihan : {{rupiah .Total}}`

const historyTemplate = `Berikut adalah riwayat pembayaran {{.Limit}} bulan terakhir Anda dengan Nomor Pelanggan {{.Number}}.

{{range $i, $p := .Payments}}{{if $i}}

{{end}}Periode {{month $p.Month}} {{$p.Year}}
Tanggal Bayar : {{date $p.PaidAt}}
Loket : {{$p.Cashier}}
Pemakaian Air : {{$p.Usage}} m3
Total : {{rupiah $p.Amount}}{{end}}`

const customerNotFoundTemplate = `Pelanggan dengan Nomor {{.}} tidak terdaftar. Mohon cek kembali nomor yang Anda kirimkan.`

const billNotFoundTemplate = `Tidak ada tagihan untuk Pelanggan dengan Nomor {{.}}.`

const historyNotFoundTemplate = `Tidak ada riwayat pembayaran di {{.Limit}} bulan terakhir untuk Pelanggan dengan Nomor {{.Number}}.`

const (
	askSubjectText       = "Berapa nomor pelanggan Anda?"
	underDevelopmentText = "Mohon maaf, fitur sedang dalam pengembangan."
	outageInfoText       = "Mohon maaf, saat ini informasi tentang gangguan pengaliran belum tersedia."
	systemErrorText      = "Mohon maaf, sistem sedang mengalami gangguan. Silakan coba beberapa saat lagi."
)
