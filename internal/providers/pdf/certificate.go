package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrIncompleteCertificate = errors.New("incomplete_certificate")

// CertificateData is the already formatted content of a signed agreement.
type CertificateData struct {
	CompanyName      string
	ReferralCode     string
	AgreementTitle   string
	AgreementType    string
	AgreementVersion string
	Content          string
	SignatureText    string
	SignedAt         string
	IPAddress        string
}

func (p *PDFProvider) GenerateCertificate(ctx context.Context, data CertificateData) (io.Reader, error) {
	if strings.TrimSpace(data.AgreementTitle) == "" || strings.TrimSpace(data.SignatureText) == "" {
		return nil, ErrIncompleteCertificate
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, "Certificate of Acceptance", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New(data.AgreementTitle, props.Text{Style: fontstyle.Bold}),
			text.New("Type: "+data.AgreementType, props.Text{Top: 5, Size: 9}),
			text.New("Version: "+data.AgreementVersion, props.Text{Top: 9, Size: 9}),
		),
		col.New(6).Add(
			text.New(data.CompanyName, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New("Referral code: "+data.ReferralCode, props.Text{Top: 5, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	for _, paragraph := range strings.Split(data.Content, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		m.AddAutoRow(text.NewCol(12, paragraph, props.Text{Size: 9, Top: 2}))
	}

	m.AddRow(4, line.NewCol(12))

	signatureCol := col.New(12).Add(
		text.New("Signed as: "+data.SignatureText, props.Text{Size: 9}),
		text.New("Signed at: "+data.SignedAt, props.Text{Top: 5, Size: 9}),
	)
	if data.IPAddress != "" {
		signatureCol.Add(text.New("From: "+data.IPAddress, props.Text{Top: 10, Size: 9}))
	}
	m.AddRow(20, signatureCol)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
