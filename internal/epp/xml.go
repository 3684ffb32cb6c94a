package epp

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zonecore/internal/contact"
	"zonecore/internal/dispatch"
	"zonecore/internal/domain"
	"zonecore/internal/host"
	"zonecore/internal/lifecycle"
	dErrors "zonecore/pkg/domain-errors"
)

const (
	nsEPP     = "urn:ietf:params:xml:ns:epp-1.0"
	nsDomain  = "urn:ietf:params:xml:ns:domain-1.0"
	nsContact = "urn:ietf:params:xml:ns:contact-1.0"
	nsHost    = "urn:ietf:params:xml:ns:host-1.0"
	nsRGP     = "urn:ietf:params:xml:ns:rgp-1.0"

	dateFormat = "2006-01-02"
)

// Codec translates between frame payloads and dispatch commands/responses.
// Encoding is deterministic, which is what lets a replayed command return
// byte-identical response frames.
type Codec struct{}

// --- request decoding ---

type reqFrame struct {
	XMLName xml.Name     `xml:"epp"`
	Hello   *struct{}    `xml:"hello"`
	Command *commandElem `xml:"command"`
}

type commandElem struct {
	Login     *loginElem     `xml:"login"`
	Logout    *struct{}      `xml:"logout"`
	Check     *objClassElem  `xml:"check"`
	Info      *objClassElem  `xml:"info"`
	Create    *createElem    `xml:"create"`
	Update    *updateElem    `xml:"update"`
	Delete    *objClassElem  `xml:"delete"`
	Renew     *renewWrap     `xml:"renew"`
	Transfer  *transferElem  `xml:"transfer"`
	Extension *extensionElem `xml:"extension"`
	ClTRID    string         `xml:"clTRID"`
}

type loginElem struct {
	ClID string `xml:"clID"`
	PW   string `xml:"pw"`
}

type objClassElem struct {
	Domain  *namesElem `xml:"urn:ietf:params:xml:ns:domain-1.0 check"`
	Contact *idsElem   `xml:"urn:ietf:params:xml:ns:contact-1.0 check"`
	Host    *namesElem `xml:"urn:ietf:params:xml:ns:host-1.0 check"`

	DomainOne  *nameElem `xml:"urn:ietf:params:xml:ns:domain-1.0 info"`
	ContactOne *idElem   `xml:"urn:ietf:params:xml:ns:contact-1.0 info"`
	HostOne    *nameElem `xml:"urn:ietf:params:xml:ns:host-1.0 info"`

	DomainDel  *nameElem `xml:"urn:ietf:params:xml:ns:domain-1.0 delete"`
	ContactDel *idElem   `xml:"urn:ietf:params:xml:ns:contact-1.0 delete"`
	HostDel    *nameElem `xml:"urn:ietf:params:xml:ns:host-1.0 delete"`
}

type namesElem struct {
	Names []string `xml:"name"`
}

type idsElem struct {
	IDs []string `xml:"id"`
}

type nameElem struct {
	Name string `xml:"name"`
}

type idElem struct {
	ID string `xml:"id"`
}

type createElem struct {
	Domain  *domainCreateElem  `xml:"urn:ietf:params:xml:ns:domain-1.0 create"`
	Contact *contactCreateElem `xml:"urn:ietf:params:xml:ns:contact-1.0 create"`
	Host    *hostCreateElem    `xml:"urn:ietf:params:xml:ns:host-1.0 create"`
}

type domainCreateElem struct {
	Name       string        `xml:"name"`
	Period     *periodElem   `xml:"period"`
	NS         nsElem        `xml:"ns"`
	Registrant string        `xml:"registrant"`
	Contacts   []contactRef  `xml:"contact"`
	AuthInfo   *authInfoElem `xml:"authInfo"`
}

type periodElem struct {
	Unit  string `xml:"unit,attr"`
	Value string `xml:",chardata"`
}

func (p *periodElem) years() (int, error) {
	if p == nil {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "invalid period %q", p.Value)
	}
	switch p.Unit {
	case "", "y":
		return n, nil
	case "m":
		if n%12 != 0 {
			return 0, dErrors.New(dErrors.CodePolicy, "period must be a whole number of years")
		}
		return n / 12, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "invalid period unit %q", p.Unit)
	}
}

type nsElem struct {
	HostObj []string `xml:"hostObj"`
}

type contactRef struct {
	Type string `xml:"type,attr"`
	ID   string `xml:",chardata"`
}

type authInfoElem struct {
	PW string `xml:"pw"`
}

type contactCreateElem struct {
	ID         string         `xml:"id"`
	PostalInfo postalInfoElem `xml:"postalInfo"`
	Voice      string         `xml:"voice"`
	Email      string         `xml:"email"`
}

type postalInfoElem struct {
	Name string   `xml:"name"`
	Org  string   `xml:"org"`
	Addr addrElem `xml:"addr"`
}

type addrElem struct {
	Street []string `xml:"street"`
	City   string   `xml:"city"`
	CC     string   `xml:"cc"`
}

type hostCreateElem struct {
	Name  string         `xml:"name"`
	Addrs []hostAddrElem `xml:"addr"`
}

type hostAddrElem struct {
	IP    string `xml:"ip,attr"`
	Value string `xml:",chardata"`
}

type updateElem struct {
	Domain  *domainUpdateElem  `xml:"urn:ietf:params:xml:ns:domain-1.0 update"`
	Contact *contactUpdateElem `xml:"urn:ietf:params:xml:ns:contact-1.0 update"`
	Host    *hostUpdateElem    `xml:"urn:ietf:params:xml:ns:host-1.0 update"`
}

type domainUpdateElem struct {
	Name string         `xml:"name"`
	Add  *domainAddRem  `xml:"add"`
	Rem  *domainAddRem  `xml:"rem"`
	Chg  *domainChgElem `xml:"chg"`
}

type domainAddRem struct {
	NS       *nsElem      `xml:"ns"`
	Statuses []statusElem `xml:"status"`
}

type statusElem struct {
	S string `xml:"s,attr"`
}

type domainChgElem struct {
	Registrant string        `xml:"registrant"`
	AuthInfo   *authInfoElem `xml:"authInfo"`
}

type contactUpdateElem struct {
	ID  string          `xml:"id"`
	Chg *contactChgElem `xml:"chg"`
}

type contactChgElem struct {
	PostalInfo *postalInfoElem `xml:"postalInfo"`
	Voice      string          `xml:"voice"`
	Email      string          `xml:"email"`
}

type hostUpdateElem struct {
	Name string      `xml:"name"`
	Add  *hostAddRem `xml:"add"`
	Rem  *hostAddRem `xml:"rem"`
}

type hostAddRem struct {
	Addrs    []hostAddrElem `xml:"addr"`
	Statuses []statusElem   `xml:"status"`
}

type renewWrap struct {
	Domain *domainRenewElem `xml:"urn:ietf:params:xml:ns:domain-1.0 renew"`
}

type domainRenewElem struct {
	Name       string      `xml:"name"`
	CurExpDate string      `xml:"curExpDate"`
	Period     *periodElem `xml:"period"`
}

type transferElem struct {
	Op     string              `xml:"op,attr"`
	Domain *domainTransferElem `xml:"urn:ietf:params:xml:ns:domain-1.0 transfer"`
}

type domainTransferElem struct {
	Name     string        `xml:"name"`
	AuthInfo *authInfoElem `xml:"authInfo"`
}

type extensionElem struct {
	RGPUpdate *rgpUpdateElem `xml:"urn:ietf:params:xml:ns:rgp-1.0 update"`
}

type rgpUpdateElem struct {
	Restore *struct {
		Op string `xml:"op,attr"`
	} `xml:"restore"`
}

// Decode parses one request frame. hello is true for a <hello/>, which has
// no command to dispatch.
func (Codec) Decode(payload []byte) (cmd dispatch.Command, hello bool, err error) {
	var frame reqFrame
	if err := xml.Unmarshal(payload, &frame); err != nil {
		return dispatch.Command{}, false, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request")
	}
	if frame.Hello != nil {
		return dispatch.Command{}, true, nil
	}
	c := frame.Command
	if c == nil {
		return dispatch.Command{}, false, dErrors.New(dErrors.CodeInvalidInput, "request carries no command")
	}
	cmd.ClTRID = c.ClTRID

	switch {
	case c.Login != nil:
		cmd.Verb = dispatch.VerbLogin
		cmd.Login = &dispatch.Login{ClientID: c.Login.ClID, Password: c.Login.PW}
	case c.Logout != nil:
		cmd.Verb = dispatch.VerbLogout
	case c.Check != nil:
		cmd.Verb = dispatch.VerbCheck
		switch {
		case c.Check.Domain != nil:
			cmd.Object, cmd.Targets = dispatch.ObjectDomain, c.Check.Domain.Names
		case c.Check.Contact != nil:
			cmd.Object, cmd.Targets = dispatch.ObjectContact, c.Check.Contact.IDs
		case c.Check.Host != nil:
			cmd.Object, cmd.Targets = dispatch.ObjectHost, c.Check.Host.Names
		default:
			return cmd, false, dErrors.New(dErrors.CodeInvalidInput, "check names no object")
		}
	case c.Info != nil:
		cmd.Verb = dispatch.VerbInfo
		switch {
		case c.Info.DomainOne != nil:
			cmd.Object, cmd.Target = dispatch.ObjectDomain, c.Info.DomainOne.Name
		case c.Info.ContactOne != nil:
			cmd.Object, cmd.Target = dispatch.ObjectContact, c.Info.ContactOne.ID
		case c.Info.HostOne != nil:
			cmd.Object, cmd.Target = dispatch.ObjectHost, c.Info.HostOne.Name
		default:
			return cmd, false, dErrors.New(dErrors.CodeInvalidInput, "info names no object")
		}
	case c.Create != nil:
		cmd.Verb = dispatch.VerbCreate
		if err := decodeCreate(c.Create, &cmd); err != nil {
			return cmd, false, err
		}
	case c.Update != nil:
		cmd.Verb = dispatch.VerbUpdate
		if err := decodeUpdate(c.Update, c.Extension, &cmd); err != nil {
			return cmd, false, err
		}
	case c.Delete != nil:
		cmd.Verb = dispatch.VerbDelete
		switch {
		case c.Delete.DomainDel != nil:
			cmd.Object, cmd.Target = dispatch.ObjectDomain, c.Delete.DomainDel.Name
		case c.Delete.ContactDel != nil:
			cmd.Object, cmd.Target = dispatch.ObjectContact, c.Delete.ContactDel.ID
		case c.Delete.HostDel != nil:
			cmd.Object, cmd.Target = dispatch.ObjectHost, c.Delete.HostDel.Name
		default:
			return cmd, false, dErrors.New(dErrors.CodeInvalidInput, "delete names no object")
		}
	case c.Renew != nil:
		if c.Renew.Domain == nil {
			return cmd, false, dErrors.New(dErrors.CodeInvalidInput, "renew names no object")
		}
		years, err := c.Renew.Domain.Period.years()
		if err != nil {
			return cmd, false, err
		}
		curExpiry, err := time.Parse(dateFormat, c.Renew.Domain.CurExpDate)
		if err != nil {
			return cmd, false, dErrors.Newf(dErrors.CodeInvalidInput, "invalid curExpDate %q", c.Renew.Domain.CurExpDate)
		}
		cmd.Verb = dispatch.VerbRenew
		cmd.Object = dispatch.ObjectDomain
		cmd.DomainRenew = &dispatch.Renew{Name: c.Renew.Domain.Name, CurExpiry: curExpiry, Years: years}
	case c.Transfer != nil:
		if c.Transfer.Domain == nil {
			return cmd, false, dErrors.New(dErrors.CodeInvalidInput, "transfer names no object")
		}
		cmd.Verb = dispatch.VerbTransfer
		cmd.Object = dispatch.ObjectDomain
		t := &dispatch.TransferCmd{Op: dispatch.TransferOp(c.Transfer.Op), Name: c.Transfer.Domain.Name}
		if c.Transfer.Domain.AuthInfo != nil {
			t.AuthCode = c.Transfer.Domain.AuthInfo.PW
		}
		cmd.Transfer = t
	default:
		return cmd, false, dErrors.New(dErrors.CodeUnimplemented, "unknown command")
	}
	return cmd, false, nil
}

func decodeCreate(c *createElem, cmd *dispatch.Command) error {
	switch {
	case c.Domain != nil:
		years, err := c.Domain.Period.years()
		if err != nil {
			return err
		}
		req := lifecycle.CreateRequest{
			Name:        c.Domain.Name,
			PeriodYears: years,
			Registrant:  c.Domain.Registrant,
			Nameservers: c.Domain.NS.HostObj,
		}
		for _, ref := range c.Domain.Contacts {
			id := strings.TrimSpace(ref.ID)
			switch ref.Type {
			case "admin":
				req.Admin = id
			case "tech":
				req.Tech = id
			case "billing":
				req.Billing = id
			}
		}
		if c.Domain.AuthInfo != nil {
			req.AuthCode = c.Domain.AuthInfo.PW
		}
		cmd.Object = dispatch.ObjectDomain
		cmd.DomainCreate = &req
	case c.Contact != nil:
		cmd.Object = dispatch.ObjectContact
		cmd.ContactCreate = &contact.CreateRequest{
			ID:      c.Contact.ID,
			Name:    c.Contact.PostalInfo.Name,
			Org:     c.Contact.PostalInfo.Org,
			Email:   c.Contact.Email,
			Phone:   c.Contact.Voice,
			Street:  strings.Join(c.Contact.PostalInfo.Addr.Street, ", "),
			City:    c.Contact.PostalInfo.Addr.City,
			Country: c.Contact.PostalInfo.Addr.CC,
		}
	case c.Host != nil:
		req := host.CreateRequest{Name: c.Host.Name}
		for _, a := range c.Host.Addrs {
			if a.IP == "v6" {
				req.AddrsV6 = append(req.AddrsV6, strings.TrimSpace(a.Value))
			} else {
				req.AddrsV4 = append(req.AddrsV4, strings.TrimSpace(a.Value))
			}
		}
		cmd.Object = dispatch.ObjectHost
		cmd.HostCreate = &req
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "create names no object")
	}
	return nil
}

func decodeUpdate(u *updateElem, ext *extensionElem, cmd *dispatch.Command) error {
	switch {
	case u.Domain != nil:
		// A restore travels as an update with an RGP restore extension.
		if ext != nil && ext.RGPUpdate != nil && ext.RGPUpdate.Restore != nil {
			cmd.Verb = dispatch.VerbRestore
			cmd.Object = dispatch.ObjectDomain
			cmd.Target = u.Domain.Name
			return nil
		}
		req := lifecycle.UpdateRequest{Name: u.Domain.Name}
		if u.Domain.Add != nil {
			if u.Domain.Add.NS != nil {
				req.AddNameservers = u.Domain.Add.NS.HostObj
			}
			for _, s := range u.Domain.Add.Statuses {
				req.AddStatuses = append(req.AddStatuses, domain.Status(s.S))
			}
		}
		if u.Domain.Rem != nil {
			if u.Domain.Rem.NS != nil {
				req.RemoveNameservers = u.Domain.Rem.NS.HostObj
			}
			for _, s := range u.Domain.Rem.Statuses {
				req.RemoveStatuses = append(req.RemoveStatuses, domain.Status(s.S))
			}
		}
		if u.Domain.Chg != nil {
			req.NewRegistrant = u.Domain.Chg.Registrant
			if u.Domain.Chg.AuthInfo != nil {
				req.NewAuthCode = u.Domain.Chg.AuthInfo.PW
			}
		}
		cmd.Object = dispatch.ObjectDomain
		cmd.DomainUpdate = &req
	case u.Contact != nil:
		req := contact.UpdateRequest{ID: u.Contact.ID}
		if u.Contact.Chg != nil {
			if pi := u.Contact.Chg.PostalInfo; pi != nil {
				req.Name = pi.Name
				req.Org = pi.Org
				req.Street = strings.Join(pi.Addr.Street, ", ")
				req.City = pi.Addr.City
				req.Country = pi.Addr.CC
			}
			req.Phone = u.Contact.Chg.Voice
			req.Email = u.Contact.Chg.Email
		}
		cmd.Object = dispatch.ObjectContact
		cmd.ContactUpdate = &req
	case u.Host != nil:
		req := host.UpdateRequest{Name: u.Host.Name}
		if u.Host.Add != nil {
			for _, a := range u.Host.Add.Addrs {
				if a.IP == "v6" {
					req.AddV6 = append(req.AddV6, strings.TrimSpace(a.Value))
				} else {
					req.AddV4 = append(req.AddV4, strings.TrimSpace(a.Value))
				}
			}
			for _, s := range u.Host.Add.Statuses {
				req.AddStatus = append(req.AddStatus, domain.Status(s.S))
			}
		}
		if u.Host.Rem != nil {
			for _, a := range u.Host.Rem.Addrs {
				if a.IP == "v6" {
					req.RemoveV6 = append(req.RemoveV6, strings.TrimSpace(a.Value))
				} else {
					req.RemoveV4 = append(req.RemoveV4, strings.TrimSpace(a.Value))
				}
			}
			for _, s := range u.Host.Rem.Statuses {
				req.RemStatus = append(req.RemStatus, domain.Status(s.S))
			}
		}
		cmd.Object = dispatch.ObjectHost
		cmd.HostUpdate = &req
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "update names no object")
	}
	return nil
}

// --- response encoding ---

type respFrame struct {
	XMLName  xml.Name `xml:"epp"`
	Xmlns    string   `xml:"xmlns,attr"`
	Response respElem `xml:"response"`
}

type respElem struct {
	Result  resultElem `xml:"result"`
	ResData *resData   `xml:"resData,omitempty"`
	TrID    trIDElem   `xml:"trID"`
}

type resultElem struct {
	Code     int           `xml:"code,attr"`
	Msg      string        `xml:"msg"`
	ExtValue *extValueElem `xml:"extValue,omitempty"`
}

type extValueElem struct {
	Reason string `xml:"reason"`
}

type trIDElem struct {
	ClTRID string `xml:"clTRID,omitempty"`
	SvTRID string `xml:"svTRID"`
}

type resData struct {
	DomainInfo   *domainInfData  `xml:"domain:infData,omitempty"`
	DomainCheck  *domainChkData  `xml:"domain:chkData,omitempty"`
	DomainTrn    *domainTrnData  `xml:"domain:trnData,omitempty"`
	ContactInfo  *contactInfData `xml:"contact:infData,omitempty"`
	ContactCheck *contactChkData `xml:"contact:chkData,omitempty"`
	HostInfo     *hostInfData    `xml:"host:infData,omitempty"`
	HostCheck    *hostChkData    `xml:"host:chkData,omitempty"`
}

type domainInfData struct {
	Xmlns      string          `xml:"xmlns:domain,attr"`
	Name       string          `xml:"domain:name"`
	Statuses   []statusOut     `xml:"domain:status"`
	Registrant string          `xml:"domain:registrant,omitempty"`
	Contacts   []contactRefOut `xml:"domain:contact,omitempty"`
	NS         *nsOut          `xml:"domain:ns,omitempty"`
	ClID       string          `xml:"domain:clID"`
	CrDate     string          `xml:"domain:crDate"`
	ExDate     string          `xml:"domain:exDate,omitempty"`
	UpDate     string          `xml:"domain:upDate,omitempty"`
	AuthInfo   *authInfoOut    `xml:"domain:authInfo,omitempty"`
}

type statusOut struct {
	S string `xml:"s,attr"`
}

type contactRefOut struct {
	Type string `xml:"type,attr"`
	ID   string `xml:",chardata"`
}

type nsOut struct {
	HostObj []string `xml:"domain:hostObj"`
}

type authInfoOut struct {
	PW string `xml:"domain:pw"`
}

type domainChkData struct {
	Xmlns string      `xml:"xmlns:domain,attr"`
	CDs   []chkResult `xml:"domain:cd"`
}

type chkResult struct {
	Name   chkName `xml:"domain:name"`
	Reason string  `xml:"domain:reason,omitempty"`
}

type chkName struct {
	Avail int    `xml:"avail,attr"`
	Value string `xml:",chardata"`
}

type domainTrnData struct {
	Xmlns    string `xml:"xmlns:domain,attr"`
	Name     string `xml:"domain:name"`
	TrStatus string `xml:"domain:trStatus"`
	ReID     string `xml:"domain:reID"`
	ReDate   string `xml:"domain:reDate"`
	AcID     string `xml:"domain:acID"`
	AcDate   string `xml:"domain:acDate"`
}

type contactInfData struct {
	Xmlns    string      `xml:"xmlns:contact,attr"`
	ID       string      `xml:"contact:id"`
	Statuses []statusOut `xml:"contact:status"`
	Name     string      `xml:"contact:name"`
	Org      string      `xml:"contact:org,omitempty"`
	Email    string      `xml:"contact:email,omitempty"`
	Voice    string      `xml:"contact:voice,omitempty"`
	ClID     string      `xml:"contact:clID"`
	CrDate   string      `xml:"contact:crDate"`
	UpDate   string      `xml:"contact:upDate,omitempty"`
}

type contactChkData struct {
	Xmlns string           `xml:"xmlns:contact,attr"`
	CDs   []contactChkItem `xml:"contact:cd"`
}

type contactChkItem struct {
	ID chkIDName `xml:"contact:id"`
}

type chkIDName struct {
	Avail int    `xml:"avail,attr"`
	Value string `xml:",chardata"`
}

type hostInfData struct {
	Xmlns    string        `xml:"xmlns:host,attr"`
	Name     string        `xml:"host:name"`
	Statuses []statusOut   `xml:"host:status"`
	Addrs    []hostAddrOut `xml:"host:addr,omitempty"`
	ClID     string        `xml:"host:clID"`
	CrDate   string        `xml:"host:crDate"`
	UpDate   string        `xml:"host:upDate,omitempty"`
}

type hostAddrOut struct {
	IP    string `xml:"ip,attr"`
	Value string `xml:",chardata"`
}

type hostChkData struct {
	Xmlns string        `xml:"xmlns:host,attr"`
	CDs   []hostChkItem `xml:"host:cd"`
}

type hostChkItem struct {
	Name chkName2 `xml:"host:name"`
}

type chkName2 struct {
	Avail int    `xml:"avail,attr"`
	Value string `xml:",chardata"`
}

// Response renders one response frame payload.
func (Codec) Response(r dispatch.Response) ([]byte, error) {
	frame := respFrame{
		Xmlns: nsEPP,
		Response: respElem{
			Result: resultElem{Code: r.Code, Msg: r.Message},
			TrID:   trIDElem{ClTRID: r.ClTRID, SvTRID: r.SvTRID},
		},
	}
	if r.Reason != "" {
		frame.Response.Result.ExtValue = &extValueElem{Reason: r.Reason}
	}
	rd, err := encodePayload(r.Payload)
	if err != nil {
		return nil, err
	}
	frame.Response.ResData = rd

	out, err := xml.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func encodePayload(payload any) (*resData, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case domain.Domain:
		inf := &domainInfData{
			Xmlns:      nsDomain,
			Name:       p.Name,
			Registrant: p.Registrant,
			ClID:       string(p.RegistrarID),
			CrDate:     ts(p.CreatedAt),
			ExDate:     ts(p.ExpiresAt),
			UpDate:     ts(p.UpdatedAt),
		}
		for _, s := range p.Status.Flags() {
			inf.Statuses = append(inf.Statuses, statusOut{S: string(s)})
		}
		for _, ref := range []struct{ typ, id string }{
			{"admin", p.AdminContact}, {"tech", p.TechContact}, {"billing", p.BillingContact},
		} {
			if ref.id != "" {
				inf.Contacts = append(inf.Contacts, contactRefOut{Type: ref.typ, ID: ref.id})
			}
		}
		if len(p.Nameservers) > 0 {
			inf.NS = &nsOut{HostObj: p.Nameservers}
		}
		if p.AuthCode != "" {
			inf.AuthInfo = &authInfoOut{PW: p.AuthCode}
		}
		return &resData{DomainInfo: inf}, nil
	case []lifecycle.CheckResult:
		chk := &domainChkData{Xmlns: nsDomain}
		for _, c := range p {
			chk.CDs = append(chk.CDs, chkResult{
				Name:   chkName{Avail: boolInt(c.Available), Value: c.Name},
				Reason: c.Reason,
			})
		}
		return &resData{DomainCheck: chk}, nil
	case domain.Transfer:
		return &resData{DomainTrn: &domainTrnData{
			Xmlns:    nsDomain,
			Name:     p.DomainName,
			TrStatus: string(p.Status),
			ReID:     string(p.GainingID),
			ReDate:   ts(p.RequestedAt),
			AcID:     string(p.LosingID),
			AcDate:   ts(p.AutoApproveAt),
		}}, nil
	case domain.Contact:
		inf := &contactInfData{
			Xmlns:  nsContact,
			ID:     p.ID,
			Name:   p.Name,
			Org:    p.Org,
			Email:  p.Email,
			Voice:  p.Phone,
			ClID:   string(p.RegistrarID),
			CrDate: ts(p.CreatedAt),
			UpDate: ts(p.UpdatedAt),
		}
		for _, s := range p.Status.Flags() {
			inf.Statuses = append(inf.Statuses, statusOut{S: string(s)})
		}
		return &resData{ContactInfo: inf}, nil
	case []contact.CheckResult:
		chk := &contactChkData{Xmlns: nsContact}
		for _, c := range p {
			chk.CDs = append(chk.CDs, contactChkItem{ID: chkIDName{Avail: boolInt(c.Available), Value: c.ID}})
		}
		return &resData{ContactCheck: chk}, nil
	case domain.Host:
		inf := &hostInfData{
			Xmlns:  nsHost,
			Name:   p.Name,
			ClID:   string(p.RegistrarID),
			CrDate: ts(p.CreatedAt),
			UpDate: ts(p.UpdatedAt),
		}
		for _, s := range p.Status.Flags() {
			inf.Statuses = append(inf.Statuses, statusOut{S: string(s)})
		}
		for _, a := range p.AddrsV4 {
			inf.Addrs = append(inf.Addrs, hostAddrOut{IP: "v4", Value: a})
		}
		for _, a := range p.AddrsV6 {
			inf.Addrs = append(inf.Addrs, hostAddrOut{IP: "v6", Value: a})
		}
		return &resData{HostInfo: inf}, nil
	case []host.CheckResult:
		chk := &hostChkData{Xmlns: nsHost}
		for _, c := range p {
			chk.CDs = append(chk.CDs, hostChkItem{Name: chkName2{Avail: boolInt(c.Available), Value: c.Name}})
		}
		return &resData{HostCheck: chk}, nil
	default:
		return nil, fmt.Errorf("no encoding for payload type %T", payload)
	}
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
