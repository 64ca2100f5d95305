package repository

// Factory describes access to different domain repositories.
type Factory interface {
	Transfers() TransferRepository
	Offers() OfferRepository
}
