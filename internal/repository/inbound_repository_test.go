package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// InboundRepositoryTestSuite is the test suite for InboundRepository
type InboundRepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    InboundRepository
	account *models.MailAccount
}

// SetupSuite runs once before all tests
func (s *InboundRepositoryTestSuite) SetupSuite() {
	s.db = newTestDB(s.T())
	s.repo = NewInboundRepository(s.db)
}

// SetupTest runs before each test - clean up data and create test account
func (s *InboundRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM inbound_messages")
	s.db.Exec("DELETE FROM mail_accounts")

	s.account = testAccount(1, "inbox@acme.test")
	s.account.EncryptedSecret = []byte{1}
	s.account.SecretIV = []byte{2}
	require.NoError(s.T(), s.db.Create(s.account).Error)
}

// TestInboundRepositoryTestSuite runs the test suite
func TestInboundRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(InboundRepositoryTestSuite))
}

func (s *InboundRepositoryTestSuite) newMessage(messageID string, uid uint32) *models.InboundMessage {
	return &models.InboundMessage{
		AccountID:   s.account.ID,
		TenantID:    s.account.TenantID,
		Folder:      "INBOX",
		MessageID:   messageID,
		UID:         uid,
		Subject:     "Re: pricing",
		SenderEmail: "lead@example.com",
		SenderName:  "A Lead",
		Recipients:  "inbox@acme.test",
		BodyText:    "Sounds good.",
		ReceivedAt:  time.Now().UTC(),
	}
}

func (s *InboundRepositoryTestSuite) TestCreateIfAbsent_NewMessage() {
	created, err := s.repo.CreateIfAbsent(context.Background(), s.newMessage("<m1@example.com>", 10))

	assert.NoError(s.T(), err)
	assert.True(s.T(), created)
}

func (s *InboundRepositoryTestSuite) TestCreateIfAbsent_DuplicateSkipped() {
	_, err := s.repo.CreateIfAbsent(context.Background(), s.newMessage("<m1@example.com>", 10))
	require.NoError(s.T(), err)

	// Same message re-fetched under a renumbered UID.
	created, err := s.repo.CreateIfAbsent(context.Background(), s.newMessage("<m1@example.com>", 99))

	assert.NoError(s.T(), err)
	assert.False(s.T(), created)

	var count int64
	s.db.Model(&models.InboundMessage{}).Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

func (s *InboundRepositoryTestSuite) TestCreateIfAbsent_SameMessageIDOtherAccount() {
	other := testAccount(1, "second@acme.test")
	other.EncryptedSecret = []byte{1}
	other.SecretIV = []byte{2}
	require.NoError(s.T(), s.db.Create(other).Error)

	first := s.newMessage("<m1@example.com>", 10)
	_, err := s.repo.CreateIfAbsent(context.Background(), first)
	require.NoError(s.T(), err)

	second := s.newMessage("<m1@example.com>", 10)
	second.AccountID = other.ID
	created, err := s.repo.CreateIfAbsent(context.Background(), second)

	// Uniqueness is per account, not global.
	assert.NoError(s.T(), err)
	assert.True(s.T(), created)
}

func (s *InboundRepositoryTestSuite) TestRerunningSyncBatchIsIdempotent() {
	batch := []string{"<a@x>", "<b@x>", "<c@x>"}

	for run := 0; run < 2; run++ {
		for i, mid := range batch {
			_, err := s.repo.CreateIfAbsent(context.Background(), s.newMessage(mid, uint32(i+1)))
			require.NoError(s.T(), err)
		}
	}

	var count int64
	s.db.Model(&models.InboundMessage{}).Count(&count)
	assert.Equal(s.T(), int64(3), count)
}

func (s *InboundRepositoryTestSuite) TestListByAccount_Pagination() {
	for i := 0; i < 5; i++ {
		msg := s.newMessage(fmt.Sprintf("<m%d@example.com>", i), uint32(i+1))
		msg.ReceivedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		_, err := s.repo.CreateIfAbsent(context.Background(), msg)
		require.NoError(s.T(), err)
	}

	items, total, err := s.repo.ListByAccount(context.Background(), 1, s.account.ID, 2, 0)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(5), total)
	require.Len(s.T(), items, 2)
	// Newest first.
	assert.Equal(s.T(), "<m4@example.com>", s.messageIDOf(items[0].ID))
}

func (s *InboundRepositoryTestSuite) messageIDOf(id uint) string {
	var msg models.InboundMessage
	require.NoError(s.T(), s.db.First(&msg, id).Error)
	return msg.MessageID
}

func (s *InboundRepositoryTestSuite) TestListByTenant_DoesNotLeakOtherTenants() {
	_, err := s.repo.CreateIfAbsent(context.Background(), s.newMessage("<mine@x>", 1))
	require.NoError(s.T(), err)

	foreign := testAccount(2, "other@beta.test")
	foreign.EncryptedSecret = []byte{1}
	foreign.SecretIV = []byte{2}
	require.NoError(s.T(), s.db.Create(foreign).Error)
	theirMsg := s.newMessage("<theirs@x>", 1)
	theirMsg.AccountID = foreign.ID
	theirMsg.TenantID = 2
	_, err = s.repo.CreateIfAbsent(context.Background(), theirMsg)
	require.NoError(s.T(), err)

	items, total, err := s.repo.ListByTenant(context.Background(), 1, 10, 0)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	require.Len(s.T(), items, 1)
	assert.Equal(s.T(), s.account.ID, items[0].AccountID)
}

func (s *InboundRepositoryTestSuite) TestMarkAsRead() {
	msg := s.newMessage("<m1@example.com>", 1)
	_, err := s.repo.CreateIfAbsent(context.Background(), msg)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.repo.MarkAsRead(context.Background(), 1, msg.ID))

	got, err := s.repo.GetByID(context.Background(), 1, msg.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), got.IsRead)

	// Wrong tenant cannot flip the flag.
	err = s.repo.MarkAsRead(context.Background(), 2, msg.ID)
	assert.ErrorIs(s.T(), err, apperrors.ErrNotFound)
}

func (s *InboundRepositoryTestSuite) TestCountUnread() {
	for i := 0; i < 3; i++ {
		_, err := s.repo.CreateIfAbsent(context.Background(), s.newMessage(fmt.Sprintf("<m%d@x>", i), uint32(i+1)))
		require.NoError(s.T(), err)
	}
	var first models.InboundMessage
	require.NoError(s.T(), s.db.First(&first).Error)
	require.NoError(s.T(), s.repo.MarkAsRead(context.Background(), 1, first.ID))

	count, err := s.repo.CountUnread(context.Background(), 1)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), count)
}
