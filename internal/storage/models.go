package storage

type Run struct {
	ID                string
	SourceName        string
	Checksum          string
	CreatedAt         string
	UnitCount         int64
	DeficitCount      int64
	InternalCount     int64
	ExternalCount     int64
	NoNegative        int64
	TransfersOccurred int64
	Transcript        string
}

type RunTransfer struct {
	RunID        string
	Seq          int64
	Kind         string
	FundCode     int64
	SourceUnit   string
	SourceNature string
	SourceName   string
	DestUnit     string
	DestNature   string
	DestName     string
	Amount       string
}

type RunDeficit struct {
	RunID      string
	Seq        int64
	UnitCode   string
	UnitName   string
	NatureCode string
	NatureName string
	Amount     string
	FundCode   int64
	Prohibited int64
}
