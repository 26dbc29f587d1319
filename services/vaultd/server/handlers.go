package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	protoerrors "stakevault/core/errors"
	"stakevault/crypto"
	"stakevault/native/vault"
)

var errMissingCaller = errors.New("caller identity missing")

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeProblem(w, r, http.StatusBadRequest, err.Error(), protoerrors.KindValidation.String())
}

func vaultIDParam(r *http.Request) (uint64, error) {
	return parseUintParam(chi.URLParam(r, "id"), "vault id")
}

// caller returns the authenticated identity. The auth middleware guarantees
// presence on write routes.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	id, ok := callerFrom(r.Context())
	if !ok {
		writeProblem(w, r, http.StatusUnauthorized, errMissingCaller.Error(), "")
	}
	return id, ok
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	registry, err := s.backend.Registry(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRegistryView(registry))
}

func (s *Server) handleController(w http.ResponseWriter, r *http.Request) {
	controller, err := s.backend.Controller(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ratio, err := s.backend.ControllerRatio(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newControllerView(controller, ratio))
}

func (s *Server) handleVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.backend.Vaults(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]vaultView, 0, len(vaults))
	for _, v := range vaults {
		view, err := newVaultView(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	v, err := s.backend.Vault(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := newVaultView(v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	owner, err := parseIdentityParam(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	position, err := s.backend.Position(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	health, err := s.backend.PositionHealth(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position, health))
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	owner, err := parseIdentityParam(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	tickets, err := s.backend.TicketsFor(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ticketView, 0, len(tickets))
	for _, ticket := range tickets {
		claimable, err := s.backend.TicketReady(r.Context(), ticket.Ref())
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, newTicketView(ticket, claimable))
	}
	writeJSON(w, http.StatusOK, out)
}

// ticketRefParam reads the vault, owner and ticket id path segments.
func ticketRefParam(r *http.Request) (vault.TicketRef, error) {
	id, err := vaultIDParam(r)
	if err != nil {
		return vault.TicketRef{}, err
	}
	owner, err := parseIdentityParam(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		return vault.TicketRef{}, err
	}
	ticketID, err := parseUintParam(chi.URLParam(r, "ticket"), "ticket id")
	if err != nil {
		return vault.TicketRef{}, err
	}
	return vault.TicketRef{VaultID: id, User: owner, ID: ticketID}, nil
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	ref, err := ticketRefParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	ticket, err := s.backend.Ticket(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claimable, err := s.backend.TicketReady(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketView(ticket, claimable))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := parseIdentityParam(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	base, err := s.backend.Balance(ctx, vault.BaseAsset, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	synthetic, err := s.backend.Balance(ctx, vault.SyntheticMint(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vaults, err := s.backend.Vaults(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := balancesView{
		Owner:     crypto.FormatIdentity(owner),
		Base:      amount(base),
		Synthetic: amount(synthetic),
		Shares:    []shareBalance{},
	}
	for _, v := range vaults {
		shares, err := s.backend.Balance(ctx, v.ShareMint, owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if shares > 0 {
			view.Shares = append(view.Shares, shareBalance{VaultID: v.ID, Shares: amount(shares)})
		}
	}
	writeJSON(w, http.StatusOK, view)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req pauseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := s.backend.SetPaused(r.Context(), caller, req.Paused); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type creditRequest struct {
	Holder string `json:"holder"`
	Amount amount `json:"amount"`
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	holder, err := parseIdentityParam(req.Holder, "holder")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := s.backend.CreditBase(r.Context(), caller, holder, uint64(req.Amount)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type createVaultRequest struct {
	Name        string `json:"name"`
	FeeBps      uint16 `json:"fee_bps"`
	MaxCapacity amount `json:"max_capacity"`
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createVaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	created, err := s.backend.CreateVault(r.Context(), caller, req.FeeBps, uint64(req.MaxCapacity), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := newVaultView(created)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type acceptingRequest struct {
	Accepting bool `json:"accepting"`
}

func (s *Server) handleAccepting(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req acceptingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := s.backend.SetAcceptingDeposits(r.Context(), caller, id, req.Accepting); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type amountRequest struct {
	Amount amount `json:"amount"`
}

type depositResponse struct {
	SharesMinted amount `json:"shares_minted"`
	ExchangeRate amount `json:"exchange_rate"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	result, err := s.backend.Deposit(r.Context(), caller, id, uint64(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResponse{
		SharesMinted: amount(result.SharesMinted),
		ExchangeRate: amount(result.ExchangeRate),
	})
}

type reportRequest struct {
	TotalStaked amount `json:"total_staked"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req reportRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	split, err := s.backend.ReportBalance(r.Context(), caller, id, uint64(req.TotalStaked))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSplitView(split))
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := s.backend.DelegateStake(r.Context(), caller, id, uint64(req.Amount)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type mintRequest struct {
	Collateral amount `json:"collateral"`
	Amount     amount `json:"amount"`
}

type mintResponse struct {
	Collateral      amount `json:"collateral"`
	Debt            amount `json:"debt"`
	CollateralValue amount `json:"collateral_value"`
	CollateralRatio amount `json:"collateral_ratio_bps"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	result, err := s.backend.MintSynthetic(r.Context(), caller, id, uint64(req.Collateral), uint64(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mintResponse{
		Collateral:      amount(result.Position.Collateral),
		Debt:            amount(result.Position.Debt),
		CollateralValue: amount(result.CollateralValue),
		CollateralRatio: amount(result.CollateralRatio),
	})
}

type burnResponse struct {
	Collateral         amount `json:"collateral"`
	Debt               amount `json:"debt"`
	CollateralReleased amount `json:"collateral_released"`
	ReleasedValue      amount `json:"released_value"`
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	result, err := s.backend.BurnSynthetic(r.Context(), caller, id, uint64(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, burnResponse{
		Collateral:         amount(result.Position.Collateral),
		Debt:               amount(result.Position.Debt),
		CollateralReleased: amount(result.CollateralReleased),
		ReleasedValue:      amount(result.ReleasedValue),
	})
}

type liquidationResponse struct {
	CollateralSeized amount `json:"collateral_seized"`
	DebtRepaid       amount `json:"debt_repaid"`
	Bonus            amount `json:"bonus"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	owner, err := parseIdentityParam(chi.URLParam(r, "owner"), "owner")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	result, err := s.backend.Liquidate(r.Context(), caller, owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationResponse{
		CollateralSeized: amount(result.CollateralSeized),
		DebtRepaid:       amount(result.DebtRepaid),
		Bonus:            amount(result.Bonus),
	})
}

type withdrawalRequest struct {
	Shares amount `json:"shares"`
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var req withdrawalRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	ticket, err := s.backend.RequestWithdrawal(r.Context(), caller, id, uint64(req.Shares))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTicketView(ticket, ticket.ReadyToClaim))
}

func (s *Server) handleClaimWithdrawal(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	ref, err := ticketRefParam(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	ticket, err := s.backend.ClaimWithdrawal(r.Context(), caller, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketView(ticket, false))
}
